// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package collector

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nflogipac/internal/config"
	"github.com/nflogipac/internal/types"
	"github.com/nflogipac/internal/wire"
)

var triggerByte = []byte{'x'}

// daemon is one running nflogipacd child.
type daemon struct {
	group  config.GroupConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	asm    *assembler

	pending  atomic.Bool
	stopping atomic.Bool
}

func startDaemon(exe string, g config.GroupConfig) (*daemon, error) {
	asm, err := newAssembler(g.Group, g.Kind)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(exe, strconv.Itoa(int(g.Group)), g.Kind)
	cmd.Stderr = os.Stderr
	// Own process group: a terminal interrupt reaches only the collector,
	// which then shuts the daemons down through their trigger streams.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s for group %d: %w", exe, g.Group, err)
	}
	slog.Info("daemon started", "group", g.Group, "kind", g.Kind, "pid", cmd.Process.Pid)
	return &daemon{group: g, cmd: cmd, stdin: stdin, stdout: stdout, asm: asm}, nil
}

// trigger requests an export unless the previous one is still outstanding.
// It reports whether the request was written.
func (d *daemon) trigger() (bool, error) {
	if !d.pending.CompareAndSwap(false, true) {
		return false, nil
	}
	if _, err := d.stdin.Write(triggerByte); err != nil {
		return false, fmt.Errorf("trigger group %d: %w", d.group.Group, err)
	}
	return true, nil
}

// stop closes the trigger stream. The daemon exits when it reads EOF.
func (d *daemon) stop() {
	if d.stopping.Swap(true) {
		return
	}
	if err := d.stdin.Close(); err != nil {
		slog.Debug("closing daemon stdin", "group", d.group.Group, "err", err)
	}
}

func (d *daemon) kill() {
	d.stopping.Store(true)
	if err := d.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		slog.Warn("kill daemon", "group", d.group.Group, "err", err)
	}
}

// read decodes reports until the daemon closes its output, then reaps it.
// A daemon exiting before stop was called is an error.
func (d *daemon) read(out chan<- types.Report) error {
	dec := wire.NewDecoder(bufio.NewReader(d.stdout))
	for {
		m, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err == nil {
			var r types.Report
			var done bool
			r, done, err = d.asm.feed(m, time.Now())
			if err == nil {
				if done {
					d.pending.Store(false)
					slog.Debug("report received", "group", r.Group, "accounts", len(r.Accounts), "bytes", r.TotalBytes(), "lost", r.Lost)
					out <- r
				}
				continue
			}
		}
		d.kill()
		d.cmd.Wait()
		return fmt.Errorf("reading group %d: %w", d.group.Group, err)
	}

	err := d.cmd.Wait()
	if !d.stopping.Load() {
		if err == nil {
			err = errors.New("exit status 0")
		}
		return fmt.Errorf("daemon for group %d exited unexpectedly: %w", d.group.Group, err)
	}
	if err != nil {
		return fmt.Errorf("daemon for group %d: %w", d.group.Group, err)
	}
	slog.Info("daemon exited", "group", d.group.Group)
	return nil
}
