// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package nflogctl

import (
	"errors"
	"fmt"
)

// ErrHelp is returned by Each when "help" is requested.
var ErrHelp = errors.New("help requested")

// Command is what to do with a protocol family.
type Command string

const (
	CmdBind   Command = "bind"
	CmdRebind Command = "rebind"
	CmdStatus Command = "status"
	CmdUnbind Command = "unbind"
)

// Action is one "command family" pair.
type Action struct {
	Command Command
	Family  Family
}

func (a Action) unbind() bool { return a.Command == CmdUnbind || a.Command == CmdRebind }
func (a Action) bind() bool   { return a.Command == CmdBind || a.Command == CmdRebind }

// parseAction parses the leading "command family" pair of args and returns
// the remaining arguments.
func parseAction(args []string) (Action, []string, error) {
	var cmd Command
	switch args[0] {
	case "help":
		return Action{}, nil, ErrHelp
	case "bind", "rebind", "status", "unbind":
		cmd = Command(args[0])
	default:
		return Action{}, nil, fmt.Errorf("unknown action `%s'. Try passing help", args[0])
	}
	if len(args) < 2 {
		return Action{}, nil, errors.New("missing protocol family parameter")
	}
	f, err := ParseFamily(args[1])
	if err != nil {
		return Action{}, nil, err
	}
	return Action{Command: cmd, Family: f}, args[2:], nil
}

// Each walks "(command family)*" and runs fn on every pair before the next
// one is parsed: actions before an invalid pair have already taken effect
// when the parse error is returned.
func Each(args []string, fn func(Action) error) error {
	for len(args) > 0 {
		a, rest, err := parseAction(args)
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
		args = rest
	}
	return nil
}

// Binder is the netlink side of Apply.
type Binder interface {
	Bind(Family) error
	Unbind(Family) error
}

// Apply runs a bind-type action. Status actions are not handled here.
func Apply(b Binder, a Action) error {
	if a.unbind() {
		if err := b.Unbind(a.Family); err != nil {
			return err
		}
	}
	if a.bind() {
		if err := b.Bind(a.Family); err != nil {
			return err
		}
	}
	return nil
}
