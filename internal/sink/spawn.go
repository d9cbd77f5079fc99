// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package sink

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"

	"github.com/nflogipac/internal/types"
)

// Spawn runs a shell command per report and feeds it one
// "timestamp/group/address/bytes" line per account on stdin. A non-zero exit
// status fails the write.
type Spawn struct {
	cmdline string
}

func NewSpawn(cmdline string) *Spawn { return &Spawn{cmdline: cmdline} }

func (s *Spawn) Name() string { return "spawn" }

func (s *Spawn) Write(ctx context.Context, r types.Report) error {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", s.cmdline)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %q: %w", s.cmdline, err)
	}

	w := bufio.NewWriter(stdin)
	ts := r.Time.Unix()
	var werr error
	for _, a := range r.Accounts {
		if _, werr = fmt.Fprintf(w, "%d/%d/%s/%d\n", ts, r.Group, a.Prefix.Addr(), a.Bytes); werr != nil {
			break
		}
	}
	if werr == nil {
		werr = w.Flush()
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("child %q: %w", s.cmdline, err)
	}
	if werr != nil {
		return fmt.Errorf("feed child %q: %w", s.cmdline, werr)
	}
	return nil
}

func (s *Spawn) Close() error { return nil }
