// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package procsup

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/specialistvlad/launchgrid/internal/ctxlog"
)

var errGroupGone = errors.New("process group is gone")

// Handle owns one started process and its process group.
type Handle struct {
	label            string
	cmd              *exec.Cmd
	done             chan struct{}
	exitCode         int
	interruptTimeout time.Duration
	termTimeout      time.Duration
}

func (h *Handle) Label() string         { return h.label }
func (h *Handle) Pid() int              { return h.cmd.Process.Pid }
func (h *Handle) Done() <-chan struct{} { return h.done }

// ExitCode is the process exit status, or the negated signal number if the
// process was killed by a signal. Only valid after Done is closed.
func (h *Handle) ExitCode() int { return h.exitCode }

func (h *Handle) wait(ctx context.Context, closeOutput func()) {
	err := h.cmd.Wait()
	closeOutput()
	h.exitCode = exitStatus(h.cmd.ProcessState)
	ctxlog.FromContext(ctx).Debug("Process reaped.", "unit", h.label, "pid", h.Pid(), "exit_code", h.exitCode, "wait_error", err)
	close(h.done)
}

// Terminate sends SIGINT to the process group, then SIGTERM and finally
// SIGKILL, waiting for the configured timeouts in between. The group is
// signalled even when its leader already exited, so children the leader left
// behind are stopped too. It returns once the group is gone, or with
// ctx.Err() if ctx ends first.
func (h *Handle) Terminate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("unit", h.label, "pid", h.Pid())
	// Setpgid makes the leader's pid the group id.
	pgid := h.Pid()
	timeouts := []time.Duration{h.interruptTimeout, h.termTimeout, h.termTimeout}

	for stage, timeout := range timeouts {
		if h.stopped() {
			return nil
		}

		logger.Debug("Signalling process group.", "signal", stageName(stage))
		if err := signalGroup(pgid, stage); err != nil {
			if errors.Is(err, errGroupGone) {
				return h.waitLeader(ctx)
			}
			logger.Debug("Signal failed.", "signal", stageName(stage), "error", err)
		}

		stopped, err := h.waitStopped(ctx, timeout)
		if err != nil {
			return err
		}
		if stopped {
			return nil
		}
		if stage < len(timeouts)-1 {
			logger.Warn("Unit did not exit in time, escalating.", "after", timeout.String(), "signal", stageName(stage))
		}
	}

	// Members reparented after the leader exited stay in the group as
	// zombies until their new parent reaps them; only the leader is awaited.
	return h.waitLeader(ctx)
}

// stopped reports whether the leader was reaped and nothing is left in its
// process group.
func (h *Handle) stopped() bool {
	select {
	case <-h.done:
		return !groupAlive(h.Pid())
	default:
		return false
	}
}

func (h *Handle) waitStopped(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return h.stopped(), nil
		case <-tick.C:
			if h.stopped() {
				return true, nil
			}
		}
	}
}

func (h *Handle) waitLeader(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
