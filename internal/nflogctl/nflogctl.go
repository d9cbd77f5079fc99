// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

// Package nflogctl binds and unbinds the nfnetlink_log logger of a protocol
// family and reports which logger the kernel currently uses.
package nflogctl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"
)

// ProcPath lists the logger bound to each protocol family.
const ProcPath = "/proc/net/netfilter/nf_log"

const (
	nfnlSubsysULOG  = 4
	nfulnlMsgConfig = 1
	nfulaCfgCmd     = 1

	cmdPfBind   = 3
	cmdPfUnbind = 4

	procUnbound = "NONE"
	procBound   = "nfnetlink_log"
)

// Family is a protocol family accepted on the command line.
type Family uint8

const (
	Inet  Family = unix.AF_INET
	Inet6 Family = unix.AF_INET6
)

func (f Family) String() string {
	if f == Inet6 {
		return "AF_INET6"
	}
	return "AF_INET"
}

// ParseFamily accepts AF_INET and AF_INET6.
func ParseFamily(s string) (Family, error) {
	switch s {
	case "AF_INET":
		return Inet, nil
	case "AF_INET6":
		return Inet6, nil
	default:
		return 0, fmt.Errorf("unknown protocol family `%s'. Valid protocol families are AF_INET and AF_INET6", s)
	}
}

// Status is the binding state read from ProcPath.
type Status string

const (
	StatusBound   Status = "bound"
	StatusUnbound Status = "unbound"
	StatusOther   Status = "other"
	StatusError   Status = "error"
)

// ParseStatus reads the nf_log table and returns the state of family f.
// Lines look like " 2 nfnetlink_log (nfnetlink_log,ipt_LOG)".
func ParseStatus(r io.Reader, f Family) Status {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		pf, err := strconv.Atoi(fields[0])
		if err != nil || pf != int(f) {
			continue
		}
		switch fields[1] {
		case procUnbound:
			return StatusUnbound
		case procBound:
			return StatusBound
		default:
			return StatusOther
		}
	}
	return StatusError
}

// ReadStatus opens ProcPath and parses it.
func ReadStatus(f Family) (Status, error) {
	file, err := os.Open(ProcPath)
	if err != nil {
		return StatusError, fmt.Errorf("failed to open %s: %w", ProcPath, err)
	}
	defer file.Close()
	return ParseStatus(file, f), nil
}

// configMessage builds an NFULNL_MSG_CONFIG request carrying cmd for family f.
func configMessage(f Family, cmd uint8) (netlink.Message, error) {
	ae := netlink.NewAttributeEncoder()
	ae.Bytes(nfulaCfgCmd, []byte{cmd})
	attrs, err := ae.Encode()
	if err != nil {
		return netlink.Message{}, err
	}

	// struct nfgenmsg: family, version, big-endian resource id.
	data := make([]byte, 4, 4+len(attrs))
	data[0] = uint8(f)
	data[1] = unix.NFNETLINK_V0
	binary.BigEndian.PutUint16(data[2:4], 0)
	data = append(data, attrs...)

	return netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(nfnlSubsysULOG<<8 | nfulnlMsgConfig),
			Flags: netlink.Request | netlink.Acknowledge,
		},
		Data: data,
	}, nil
}

// Conn is a netfilter netlink socket.
type Conn struct {
	c *netlink.Conn
}

func Dial() (*Conn, error) {
	c, err := netlink.Dial(unix.NETLINK_NETFILTER, nil)
	if err != nil {
		return nil, fmt.Errorf("netlink dial: %w", err)
	}
	return &Conn{c: c}, nil
}

func (c *Conn) Close() error { return c.c.Close() }

func (c *Conn) send(f Family, cmd uint8) error {
	msg, err := configMessage(f, cmd)
	if err != nil {
		return err
	}
	_, err = c.c.Execute(msg)
	return err
}

// Bind makes nfnetlink_log the logger of family f.
func (c *Conn) Bind(f Family) error {
	if err := c.send(f, cmdPfBind); err != nil {
		return fmt.Errorf("bind %s: %w", f, err)
	}
	return nil
}

// Unbind releases family f from nfnetlink_log.
func (c *Conn) Unbind(f Family) error {
	if err := c.send(f, cmdPfUnbind); err != nil {
		return fmt.Errorf("unbind %s: %w", f, err)
	}
	return nil
}
