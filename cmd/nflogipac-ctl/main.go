// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nflogipac/internal/nflogctl"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s  [command protocolfamily]*\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "The command is one out of help, bind, rebind, status, unbind.")
	fmt.Fprintln(os.Stderr, "Supported protocol families are AF_INET and AF_INET6.")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var conn *nflogctl.Conn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	err := nflogctl.Each(args, func(a nflogctl.Action) error {
		if a.Command == nflogctl.CmdStatus {
			st, err := nflogctl.ReadStatus(a.Family)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", a.Family, st)
			return nil
		}
		if conn == nil {
			c, err := nflogctl.Dial()
			if err != nil {
				return err
			}
			conn = c
		}
		return nflogctl.Apply(conn, a)
	})
	if errors.Is(err, nflogctl.ErrHelp) {
		usage()
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}
