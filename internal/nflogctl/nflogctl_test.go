// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package nflogctl

import (
	"errors"
	"strings"
	"testing"

	"github.com/mdlayher/netlink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const procSample = ` 0 NONE (nfnetlink_log)
 1 NONE (nfnetlink_log)
 2 nfnetlink_log (nfnetlink_log)
 3 NONE (nfnetlink_log)
 7 ipt_LOG (nfnetlink_log,ipt_LOG)
10 NONE (nfnetlink_log)
`

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusBound, ParseStatus(strings.NewReader(procSample), Inet))
	assert.Equal(t, StatusUnbound, ParseStatus(strings.NewReader(procSample), Inet6))
	assert.Equal(t, StatusError, ParseStatus(strings.NewReader(" 0 NONE\n"), Inet))

	other := strings.Replace(procSample, "10 NONE", "10 ip6t_LOG", 1)
	assert.Equal(t, StatusOther, ParseStatus(strings.NewReader(other), Inet6))
}

func collect(args []string) ([]Action, error) {
	var got []Action
	err := Each(args, func(a Action) error {
		got = append(got, a)
		return nil
	})
	return got, err
}

func TestEach(t *testing.T) {
	got, err := collect([]string{"rebind", "AF_INET", "status", "AF_INET6"})
	require.NoError(t, err)
	assert.Equal(t, []Action{
		{Command: CmdRebind, Family: Inet},
		{Command: CmdStatus, Family: Inet6},
	}, got)

	got, err = collect(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEachRunsPairsBeforeLaterErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		is   error
	}{
		{"unknown action", []string{"bind", "AF_INET", "bogus"}, nil},
		{"missing family", []string{"bind", "AF_INET", "unbind"}, nil},
		{"unknown family", []string{"bind", "AF_INET", "bind", "AF_UNIX"}, nil},
		{"help", []string{"bind", "AF_INET", "help"}, ErrHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collect(tt.args)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			assert.Equal(t, []Action{{Command: CmdBind, Family: Inet}}, got)
		})
	}
}

func TestEachStopsOnActionError(t *testing.T) {
	r := &recorder{fail: "bind"}
	err := Each([]string{"bind", "AF_INET", "unbind", "AF_INET6"}, func(a Action) error {
		return Apply(r, a)
	})
	assert.Error(t, err)
	assert.Equal(t, []string{"bind AF_INET"}, r.calls)
}

type recorder struct {
	calls []string
	fail  string
}

func (r *recorder) Bind(f Family) error {
	r.calls = append(r.calls, "bind "+f.String())
	if r.fail == "bind" {
		return errors.New("EPERM")
	}
	return nil
}

func (r *recorder) Unbind(f Family) error {
	r.calls = append(r.calls, "unbind "+f.String())
	if r.fail == "unbind" {
		return errors.New("EPERM")
	}
	return nil
}

func TestApply(t *testing.T) {
	r := &recorder{}
	require.NoError(t, Apply(r, Action{Command: CmdRebind, Family: Inet6}))
	require.NoError(t, Apply(r, Action{Command: CmdBind, Family: Inet}))
	require.NoError(t, Apply(r, Action{Command: CmdUnbind, Family: Inet}))
	assert.Equal(t, []string{"unbind AF_INET6", "bind AF_INET6", "bind AF_INET", "unbind AF_INET"}, r.calls)

	r = &recorder{fail: "unbind"}
	assert.Error(t, Apply(r, Action{Command: CmdRebind, Family: Inet}))
	assert.Equal(t, []string{"unbind AF_INET"}, r.calls)
}

func TestConfigMessage(t *testing.T) {
	msg, err := configMessage(Inet6, cmdPfBind)
	require.NoError(t, err)

	assert.Equal(t, netlink.HeaderType(0x0401), msg.Header.Type)
	assert.Equal(t, netlink.Request|netlink.Acknowledge, msg.Header.Flags)
	require.GreaterOrEqual(t, len(msg.Data), 4)
	assert.Equal(t, []byte{10, 0, 0, 0}, msg.Data[:4])

	ad, err := netlink.NewAttributeDecoder(msg.Data[4:])
	require.NoError(t, err)
	require.True(t, ad.Next())
	assert.Equal(t, uint16(nfulaCfgCmd), ad.Type())
	assert.Equal(t, []byte{cmdPfBind}, ad.Bytes())
	require.NoError(t, ad.Err())
}
