// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package procsup starts launch units as OS processes and stops them with an
// escalating sequence of signals.
package procsup

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/specialistvlad/launchgrid/internal/ctxlog"
	"github.com/specialistvlad/launchgrid/internal/orchestrator"
	"github.com/specialistvlad/launchgrid/internal/unit"
)

const (
	DefaultInterruptTimeout = 5 * time.Second
	DefaultTermTimeout      = 5 * time.Second
	// waitDelay bounds how long Wait keeps copying output after the process
	// exits, for children that inherited its pipes.
	waitDelay = 2 * time.Second
)

// Options configures a Supervisor.
type Options struct {
	// LogDir receives one <label>.log file per unit with log output.
	LogDir string
	// Screen receives prefixed output of units with screen output.
	// Defaults to os.Stdout.
	Screen io.Writer
	// InterruptTimeout is how long a unit may take to exit after SIGINT
	// before it gets SIGTERM.
	InterruptTimeout time.Duration
	// TermTimeout is how long a unit may take to exit after SIGTERM before
	// it is killed.
	TermTimeout time.Duration
}

// Supervisor implements orchestrator.Starter with real processes.
type Supervisor struct {
	opts Options
	// screen serializes writes of all units to the shared screen.
	screen io.Writer
}

var _ orchestrator.Starter = (*Supervisor)(nil)

// New creates a Supervisor.
func New(opts Options) *Supervisor {
	if opts.Screen == nil {
		opts.Screen = os.Stdout
	}
	if opts.InterruptTimeout <= 0 {
		opts.InterruptTimeout = DefaultInterruptTimeout
	}
	if opts.TermTimeout <= 0 {
		opts.TermTimeout = DefaultTermTimeout
	}
	return &Supervisor{opts: opts, screen: &lockedWriter{w: opts.Screen}}
}

// Start launches cmd in its own process group and returns its handle.
func (s *Supervisor) Start(ctx context.Context, cmd *unit.Command) (orchestrator.Process, error) {
	logger := ctxlog.FromContext(ctx).With("unit", cmd.Label)

	path := cmd.Path
	if !strings.ContainsRune(path, filepath.Separator) {
		found, err := exec.LookPath(path)
		if err != nil {
			return nil, fmt.Errorf("starting %q: %w", cmd.Label, err)
		}
		path = found
	}

	c := exec.Command(path, cmd.Args...)
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.WaitDelay = waitDelay
	configureProcess(c)

	out, closeOutput, err := s.output(cmd)
	if err != nil {
		return nil, err
	}
	c.Stdout = out
	c.Stderr = out

	if err := c.Start(); err != nil {
		closeOutput()
		return nil, fmt.Errorf("starting %q: %w", cmd.Label, err)
	}
	logger.Debug("Process started.", "pid", c.Process.Pid, "path", path, "output", string(cmd.Output))

	h := &Handle{
		label:            cmd.Label,
		cmd:              c,
		done:             make(chan struct{}),
		interruptTimeout: s.opts.InterruptTimeout,
		termTimeout:      s.opts.TermTimeout,
	}
	go h.wait(ctx, closeOutput)
	return h, nil
}

// output builds the writer for a unit's stdout and stderr according to its
// output policy.
func (s *Supervisor) output(cmd *unit.Command) (io.Writer, func(), error) {
	var (
		writers []io.Writer
		closers []func()
	)

	if cmd.Output == unit.OutputScreen || cmd.Output == unit.OutputBoth {
		pw := newPrefixWriter(s.screen, "["+cmd.Label+"] ")
		writers = append(writers, pw)
		closers = append(closers, pw.Flush)
	}

	if cmd.Output == unit.OutputLog || cmd.Output == unit.OutputBoth {
		if s.opts.LogDir == "" {
			// no log directory: log output is discarded
			writers = append(writers, io.Discard)
		} else {
			if err := os.MkdirAll(s.opts.LogDir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("creating log directory: %w", err)
			}
			f, err := os.OpenFile(LogFile(s.opts.LogDir, cmd.Label), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, nil, fmt.Errorf("opening log file for %q: %w", cmd.Label, err)
			}
			writers = append(writers, f)
			closers = append(closers, func() { _ = f.Close() })
		}
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	switch len(writers) {
	case 0:
		return io.Discard, closeAll, nil
	case 1:
		return writers[0], closeAll, nil
	default:
		return io.MultiWriter(writers...), closeAll, nil
	}
}

// LogFile returns the log file path of a unit.
func LogFile(dir, label string) string {
	return filepath.Join(dir, label+".log")
}

// TerminatePID stops a process group that is not a child of this process,
// such as a unit left behind by an earlier launch, with the same escalation
// as Handle.Terminate. It returns nil if the process is already gone.
func (s *Supervisor) TerminatePID(ctx context.Context, pid int) error {
	if pid <= 0 || !alive(pid) {
		return nil
	}
	for stage, timeout := range []time.Duration{s.opts.InterruptTimeout, s.opts.TermTimeout, s.opts.TermTimeout} {
		if err := signalPID(pid, stage); err != nil {
			if !alive(pid) {
				return nil
			}
			return fmt.Errorf("signalling pid %d: %w", pid, err)
		}
		if waitGone(ctx, pid, timeout) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("pid %d is still running after SIGKILL", pid)
}

// Alive reports whether a process with the given pid exists.
func Alive(pid int) bool {
	return pid > 0 && alive(pid)
}

func waitGone(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if !alive(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return !alive(pid)
		case <-tick.C:
		}
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
