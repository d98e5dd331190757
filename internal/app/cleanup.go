package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/specialistvlad/launchgrid/internal/ctxlog"
	"github.com/specialistvlad/launchgrid/internal/journal"
	"github.com/specialistvlad/launchgrid/internal/procsup"
)

// cleanup stops the units the journal knows as started but never saw exit.
// Units of a launcher that is still alive are left alone.
func (a *App) cleanup(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	j, err := journal.Open(ctx, a.config.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	orphans, err := j.Orphans(ctx)
	if err != nil {
		return err
	}
	logger.Info("Journal read.", "path", a.config.JournalPath, "orphans", len(orphans))

	sup := procsup.New(procsup.Options{
		InterruptTimeout: a.config.ShutdownTimeout,
		TermTimeout:      a.config.ShutdownTimeout,
	})

	var (
		errs     []error
		stopped  int
		skipped  int
		statuses = make(map[string]string)
	)
	for _, o := range orphans {
		if o.LauncherPid != os.Getpid() && procsup.Alive(o.LauncherPid) {
			logger.Info("Launcher is still running, skipping unit.", "session", o.SessionID, "unit", o.Label, "launcher_pid", o.LauncherPid)
			skipped++
			continue
		}

		logger.Info("Stopping unit left running.", "session", o.SessionID, "unit", o.Label, "pid", o.Pid, "started_at", o.StartedAt)
		if err := sup.TerminatePID(ctx, o.Pid); err != nil {
			errs = append(errs, fmt.Errorf("unit %q of session %s: %w", o.Label, o.SessionID, err))
			continue
		}
		if err := j.MarkReaped(ctx, o.SessionID, o.Label); err != nil {
			errs = append(errs, err)
			continue
		}
		stopped++

		// A session still marked running lost its launcher before shutdown.
		status, ok := statuses[o.SessionID]
		if !ok {
			if status, err = j.SessionStatus(ctx, o.SessionID); err != nil {
				logger.Warn("Failed to read session status.", "session", o.SessionID, "error", err)
				status = "unknown"
			}
			statuses[o.SessionID] = status
		}
		fmt.Fprintf(a.outW, "Stopped unit %q (pid %d) of session %s (%s).\n", o.Label, o.Pid, o.SessionID, status)
	}

	fmt.Fprintf(a.outW, "Cleaned up %d unit(s), skipped %d of running launches.\n", stopped, skipped)
	return errors.Join(errs...)
}
