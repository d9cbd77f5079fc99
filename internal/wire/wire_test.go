// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package wire

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, fn func(e *Encoder) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	e := NewEncoder(w)
	require.NoError(t, fn(e))
	require.NoError(t, e.Flush())
	return buf.Bytes()
}

func TestEncodeLayout(t *testing.T) {
	got := encode(t, func(e *Encoder) error {
		return e.Account(160, []byte{203, 0, 113, 0})
	})
	assert.Equal(t, []byte{
		0x00, 0x10, 0x00, 0x01,
		0, 0, 0, 0, 0, 0, 0, 160,
		203, 0, 113, 0,
	}, got)

	v6 := []byte{0x20, 0x01, 0x0d, 0xb8, 15: 0}
	got = encode(t, func(e *Encoder) error { return e.Account(1500, v6) })
	require.Len(t, got, 28)
	assert.Equal(t, []byte{0x00, 0x1c, 0x00, 0x01}, got[:4])
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0x05, 0xdc}, got[4:12])
	assert.Equal(t, v6, got[12:])

	got = encode(t, func(e *Encoder) error { return e.End() })
	assert.Equal(t, []byte{0x00, 0x04, 0x00, 0x02}, got)

	got = encode(t, func(e *Encoder) error { return e.Loss(3) })
	assert.Equal(t, []byte{0x00, 0x06, 0x00, 0x03, 0x00, 0x03}, got)
}

func TestLossSaturates(t *testing.T) {
	got := encode(t, func(e *Encoder) error { return e.Loss(70000) })
	assert.Equal(t, []byte{0x00, 0x06, 0x00, 0x03, 0xff, 0xff}, got)
}

func TestAccountRejectsOddAddress(t *testing.T) {
	e := NewEncoder(bufio.NewWriter(io.Discard))
	assert.Error(t, e.Account(1, []byte{1, 2, 3}))
}

func TestRoundTrip(t *testing.T) {
	v6 := bytes.Repeat([]byte{0x20}, 16)
	stream := encode(t, func(e *Encoder) error {
		if err := e.Loss(9); err != nil {
			return err
		}
		if err := e.Account(1<<40+7, []byte{10, 0, 0, 0}); err != nil {
			return err
		}
		if err := e.Account(64, v6); err != nil {
			return err
		}
		return e.End()
	})

	d := NewDecoder(bytes.NewReader(stream))

	m, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, Message{Type: TypeLoss, Lost: 9}, m)

	m, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeAccount, m.Type)
	assert.Equal(t, uint64(1<<40+7), m.Total)
	assert.Equal(t, []byte{10, 0, 0, 0}, m.Addr)

	m, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(64), m.Total)
	assert.Equal(t, v6, m.Addr)

	m, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeEnd, m.Type)

	_, err = d.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"unknown type", []byte{0x00, 0x04, 0x00, 0x09}, ErrMalformed},
		{"end with body", []byte{0x00, 0x05, 0x00, 0x02, 0x00}, ErrMalformed},
		{"short account", []byte{0x00, 0x0b, 0x00, 0x01}, ErrMalformed},
		{"account length without header", []byte{0x00, 0x0c, 0x00, 0x01}, ErrMalformed},
		{"ipv6 account length without header", []byte{0x00, 0x18, 0x00, 0x01}, ErrMalformed},
		{"truncated body", []byte{0x00, 0x06, 0x00, 0x03, 0x00}, io.ErrUnexpectedEOF},
		{"truncated header", []byte{0x00, 0x06, 0x00}, io.ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(bytes.NewReader(tt.in)).Next()
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
