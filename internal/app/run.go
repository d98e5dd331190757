package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/specialistvlad/launchgrid/internal/arguments"
	"github.com/specialistvlad/launchgrid/internal/config"
	"github.com/specialistvlad/launchgrid/internal/ctxlog"
	"github.com/specialistvlad/launchgrid/internal/events"
	"github.com/specialistvlad/launchgrid/internal/journal"
	"github.com/specialistvlad/launchgrid/internal/orchestrator"
	"github.com/specialistvlad/launchgrid/internal/procsup"
)

// Run executes the configured mode.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "mode", a.config.Mode.String())

	if a.config.Mode == ModeCleanup {
		return a.cleanup(ctx)
	}

	desc, err := a.loader.Load(ctx, a.config.LaunchPaths...)
	if err != nil {
		return fmt.Errorf("failed to load launch description: %w", err)
	}
	a.logger.Debug("Launch description loaded.", "arguments", len(desc.Arguments), "units", len(desc.Units), "sources", desc.Sources)

	switch a.config.Mode {
	case ModeShowArgs:
		return a.showArgs(desc)
	case ModeDryRun:
		return a.dryRun(ctx, desc)
	default:
		return a.launch(ctx, desc)
	}
}

func (a *App) argumentOptions() orchestrator.Option {
	return orchestrator.WithArgumentOptions(
		arguments.WithRunner(a.runner),
		arguments.WithPackages(a.packages),
	)
}

func (a *App) launch(ctx context.Context, desc *config.Description) (err error) {
	logger := ctxlog.FromContext(ctx)

	sessionID := uuid.NewString()
	opts := []orchestrator.Option{a.argumentOptions()}

	if a.config.JournalPath != "" {
		j, err := journal.Open(ctx, a.config.JournalPath)
		if err != nil {
			return err
		}
		defer j.Close()

		session, err := j.Begin(ctx, desc.Sources)
		if err != nil {
			return err
		}
		sessionID = session.ID
		opts = append(opts, orchestrator.WithRecorder(session))
		defer func() {
			status := journal.StatusDone
			if err != nil {
				status = journal.StatusFailed
			}
			if ferr := session.Finish(context.WithoutCancel(ctx), status); ferr != nil {
				logger.Warn("Failed to finish journal session.", "error", ferr)
			}
		}()
	}

	ctx = ctxlog.With(ctx, "session", sessionID)
	logger = ctxlog.FromContext(ctx)

	publisher, closePublisher := a.eventPublisher(ctx)
	defer closePublisher()
	opts = append(opts, orchestrator.WithPublisher(publisher), orchestrator.WithSession(sessionID))

	starter := a.starter
	if starter == nil {
		logDir := ""
		if a.config.LogDir != "" {
			logDir = filepath.Join(a.config.LogDir, sessionID)
		}
		starter = procsup.New(procsup.Options{
			LogDir:           logDir,
			Screen:           a.outW,
			InterruptTimeout: a.config.ShutdownTimeout,
			TermTimeout:      a.config.ShutdownTimeout,
		})
		logger.Debug("Process supervisor configured.", "log_dir", logDir)
	}

	o := orchestrator.New(starter, opts...)
	a.orch.Store(o)

	if a.config.HealthcheckPort > 0 {
		if err := a.startHealthcheckServer(a.config.HealthcheckPort); err != nil {
			return err
		}
		defer func() { _ = a.closeHealthcheckServer(context.WithoutCancel(ctx)) }()
	}

	logger.Info("🚀 Launching.", "units", len(desc.Units), "sources", desc.Sources)
	exits, err := o.Run(ctx, desc, a.config.Overrides)
	for _, exit := range exits {
		logger.Info("Unit finished.", "unit", exit.Label, "pid", exit.Pid, "exit_code", exit.ExitCode)
	}
	if err != nil {
		var aborted *orchestrator.AbortedError
		if errors.As(err, &aborted) {
			return fmt.Errorf("launch failed: %w", err)
		}
		return err
	}
	logger.Info("🏁 Launch finished.")
	return nil
}

// eventPublisher connects to the configured socket.io server. A server that
// cannot be reached is logged and the launch goes on without events.
func (a *App) eventPublisher(ctx context.Context) (events.Publisher, func()) {
	if a.publisher != nil {
		return a.publisher, func() {}
	}
	if a.config.EventsURL == "" {
		return events.Nop{}, func() {}
	}

	pub, err := events.DialSocketIO(ctx, events.SocketIOConfig{
		URL:                a.config.EventsURL,
		Namespace:          a.config.EventsNamespace,
		ConnectTimeout:     a.config.EventsTimeout,
		InsecureSkipVerify: a.config.EventsInsecure,
	})
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Lifecycle events disabled.", "url", a.config.EventsURL, "error", err)
		return events.Nop{}, func() {}
	}
	return pub, func() { _ = pub.Close() }
}
