// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/launchgrid/internal/arguments"
	"github.com/specialistvlad/launchgrid/internal/config"
	"github.com/specialistvlad/launchgrid/internal/ctxlog"
	"github.com/specialistvlad/launchgrid/internal/events"
	"github.com/specialistvlad/launchgrid/internal/unit"
)

// Process is a started launch unit.
type Process interface {
	Label() string
	Pid() int
	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}
	// ExitCode is valid after Done is closed.
	ExitCode() int
	// Terminate asks the process to stop and waits for it to exit.
	Terminate(ctx context.Context) error
}

// Starter starts materialized commands.
type Starter interface {
	Start(ctx context.Context, cmd *unit.Command) (Process, error)
}

// Recorder persists what was started so it can be found later.
type Recorder interface {
	UnitStarted(ctx context.Context, seq int, label string, pid int, argv []string) error
	UnitExited(ctx context.Context, label string, exitCode int) error
}

// Started describes a unit the orchestrator started.
type Started struct {
	Label   string
	Pid     int
	Command *unit.Command
}

// ExitStatus is the outcome of one unit, collected at shutdown.
type ExitStatus struct {
	Label    string
	Pid      int
	ExitCode int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithArgumentOptions passes options to the argument registry of each run,
// such as the command runner and package locator.
func WithArgumentOptions(opts ...arguments.Option) Option {
	return func(o *Orchestrator) { o.argOpts = append(o.argOpts, opts...) }
}

// WithRecorder records started units, e.g. in the launch journal.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithPublisher publishes lifecycle events.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithSession tags published events with a session ID.
func WithSession(id string) Option {
	return func(o *Orchestrator) { o.session = id }
}

// Orchestrator runs one launch description. It is single use.
type Orchestrator struct {
	starter   Starter
	argOpts   []arguments.Option
	recorder  Recorder
	publisher events.Publisher
	session   string

	state atomic.Int32

	mu      sync.Mutex
	started []Started
	procs   []Process

	shutdownOnce sync.Once
	shutdownDone chan struct{}
	exits        []ExitStatus
	shutdownErr  error
}

// New creates an orchestrator that starts units through starter.
func New(starter Starter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		starter:      starter,
		publisher:    events.Nop{},
		shutdownDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current lifecycle state. It is safe for concurrent use.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(ctx context.Context, s State) {
	prev := State(o.state.Swap(int32(s)))
	if prev == s {
		return
	}
	ctxlog.FromContext(ctx).Debug("Orchestrator state changed.", "from", prev.String(), "to", s.String())
	o.publish(ctx, events.Event{Type: events.StateChanged, State: s.String()})
}

func (o *Orchestrator) publish(ctx context.Context, ev events.Event) {
	ev.Session = o.session
	ev.Time = time.Now()
	o.publisher.Publish(ctx, ev)
}

// Started returns the units started so far, in start order.
func (o *Orchestrator) Started() []Started {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Started(nil), o.started...)
}

// resolve builds the argument registry of a run and checks the overrides.
func (o *Orchestrator) resolve(ctx context.Context, desc *config.Description, overrides map[string]string) (*arguments.Registry, error) {
	reg := arguments.New(overrides, o.argOpts...)
	for _, arg := range desc.Arguments {
		if err := reg.Declare(arg); err != nil {
			return nil, err
		}
	}
	if err := reg.ValidateOverrides(ctx); err != nil {
		return nil, fmt.Errorf("invalid launch argument: %w", err)
	}
	return reg, nil
}

// Plan resolves and materializes every unit without starting anything.
func (o *Orchestrator) Plan(ctx context.Context, desc *config.Description, overrides map[string]string) ([]*unit.Command, error) {
	reg, err := o.resolve(ctx, desc, overrides)
	if err != nil {
		return nil, err
	}
	cmds := make([]*unit.Command, 0, len(desc.Units))
	for _, u := range desc.Units {
		cmd, err := u.Materialize(ctx, reg.Env())
		if err != nil {
			return nil, fmt.Errorf("unit %q: %w", u.Label, err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// Start resolves the arguments and starts every unit in declared order. It
// returns once all units are started; a unit that fails to materialize or
// start aborts the launch with an *AbortedError and leaves the units started
// before it running. Either failure leaves the orchestrator SHUTTING_DOWN
// until Shutdown is called.
func (o *Orchestrator) Start(ctx context.Context, desc *config.Description, overrides map[string]string) ([]Started, error) {
	if !o.state.CompareAndSwap(int32(StateInit), int32(StateResolving)) {
		return nil, ErrAlreadyStarted
	}
	logger := ctxlog.FromContext(ctx)
	o.publish(ctx, events.Event{Type: events.StateChanged, State: StateResolving.String()})
	logger.Info("Resolving launch arguments.", "arguments", len(desc.Arguments), "overrides", len(overrides))

	reg, err := o.resolve(ctx, desc, overrides)
	if err != nil {
		// Nothing was started; Shutdown finishes the transition to DONE.
		o.setState(ctx, StateShuttingDown)
		return nil, err
	}

	o.setState(ctx, StateStarting)
	for i, u := range desc.Units {
		if err := ctx.Err(); err != nil {
			return o.abort(ctx, u.Label, i, fmt.Errorf("interrupted: %w", err))
		}

		cmd, err := u.Materialize(ctx, reg.Env())
		if err != nil {
			return o.abort(ctx, u.Label, i, err)
		}

		proc, err := o.starter.Start(ctx, cmd)
		if err != nil {
			return o.abort(ctx, u.Label, i, err)
		}

		o.mu.Lock()
		o.started = append(o.started, Started{Label: u.Label, Pid: proc.Pid(), Command: cmd})
		o.procs = append(o.procs, proc)
		o.mu.Unlock()

		logger.Info("Started unit.", "unit", u.Label, "kind", string(cmd.Kind), "pid", proc.Pid(), "path", cmd.Path, "args", cmd.Args)
		if o.recorder != nil {
			if err := o.recorder.UnitStarted(ctx, i, u.Label, proc.Pid(), cmd.Argv()); err != nil {
				logger.Warn("Failed to record started unit.", "unit", u.Label, "error", err)
			}
		}
		o.publish(ctx, events.Event{Type: events.UnitStarted, Unit: u.Label, Pid: proc.Pid()})
	}

	o.setState(ctx, StateRunning)
	logger.Info("All units started.", "count", len(desc.Units))
	return o.Started(), nil
}

func (o *Orchestrator) abort(ctx context.Context, label string, index int, cause error) ([]Started, error) {
	started := o.Started()
	labels := make([]string, len(started))
	for i, s := range started {
		labels[i] = s.Label
	}
	abortErr := &AbortedError{Unit: label, Index: index, Started: labels, Err: cause}

	ctxlog.FromContext(ctx).Error("Launch aborted.", "unit", label, "index", index, "started", labels, "error", cause)
	o.publish(ctx, events.Event{Type: events.LaunchAborted, Unit: label, Error: cause.Error()})
	o.setState(ctx, StateShuttingDown)
	return started, abortErr
}

// Wait blocks until every started unit has exited or ctx is done. It returns
// ctx.Err() in the latter case.
func (o *Orchestrator) Wait(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	o.mu.Lock()
	procs := append([]Process(nil), o.procs...)
	o.mu.Unlock()

	exited := make(chan Process, len(procs))
	stop := make(chan struct{})
	defer close(stop)
	for _, p := range procs {
		go func(p Process) {
			select {
			case <-p.Done():
				exited <- p
			case <-stop:
			}
		}(p)
	}

	for pending := len(procs); pending > 0; pending-- {
		select {
		case p := <-exited:
			logger.Info("Unit exited.", "unit", p.Label(), "pid", p.Pid(), "exit_code", p.ExitCode(), "still_running", pending-1)
			o.publish(ctx, events.Event{Type: events.UnitExited, Unit: p.Label(), Pid: p.Pid(), ExitCode: p.ExitCode()})
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	logger.Info("All units have exited.")
	return nil
}

// Shutdown terminates every started unit concurrently, waits for them and
// collects their exit codes in start order. It is idempotent and safe to
// call from several goroutines; later calls return the first result.
func (o *Orchestrator) Shutdown(ctx context.Context) ([]ExitStatus, error) {
	o.shutdownOnce.Do(func() {
		defer close(o.shutdownDone)
		o.exits, o.shutdownErr = o.shutdown(ctx)
	})
	<-o.shutdownDone
	return o.exits, o.shutdownErr
}

func (o *Orchestrator) shutdown(ctx context.Context) ([]ExitStatus, error) {
	logger := ctxlog.FromContext(ctx)
	if o.State() != StateDone {
		o.setState(ctx, StateShuttingDown)
	}

	o.mu.Lock()
	procs := append([]Process(nil), o.procs...)
	o.mu.Unlock()
	logger.Info("Shutting down launch units.", "count", len(procs))

	errs := make([]error, len(procs))
	var wg sync.WaitGroup
	for i, p := range procs {
		wg.Add(1)
		go func(i int, p Process) {
			defer wg.Done()
			if err := p.Terminate(ctx); err != nil {
				errs[i] = fmt.Errorf("terminating unit %q: %w", p.Label(), err)
			}
		}(i, p)
	}
	wg.Wait()

	exits := make([]ExitStatus, 0, len(procs))
	for _, p := range procs {
		select {
		case <-p.Done():
		default:
			continue
		}
		status := ExitStatus{Label: p.Label(), Pid: p.Pid(), ExitCode: p.ExitCode()}
		exits = append(exits, status)
		logger.Debug("Collected unit exit code.", "unit", status.Label, "exit_code", status.ExitCode)
		if o.recorder != nil {
			if err := o.recorder.UnitExited(ctx, status.Label, status.ExitCode); err != nil {
				logger.Warn("Failed to record unit exit.", "unit", status.Label, "error", err)
			}
		}
	}

	o.setState(ctx, StateDone)
	logger.Info("Launch finished.", "units", len(exits))
	return exits, errors.Join(errs...)
}

// Run starts the description, waits until ctx is cancelled or every unit has
// exited, then shuts down. Shutdown runs even when ctx is already cancelled.
func (o *Orchestrator) Run(ctx context.Context, desc *config.Description, overrides map[string]string) ([]ExitStatus, error) {
	_, startErr := o.Start(ctx, desc, overrides)
	if startErr == nil {
		if err := o.Wait(ctx); err != nil {
			ctxlog.FromContext(ctx).Info("Interrupted, shutting down.", "reason", err)
		}
	}
	exits, shutdownErr := o.Shutdown(context.WithoutCancel(ctx))
	return exits, errors.Join(startErr, shutdownErr)
}
