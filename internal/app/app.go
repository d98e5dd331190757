package app

import (
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/specialistvlad/launchgrid/internal/ament"
	"github.com/specialistvlad/launchgrid/internal/config"
	"github.com/specialistvlad/launchgrid/internal/events"
	"github.com/specialistvlad/launchgrid/internal/hcl"
	"github.com/specialistvlad/launchgrid/internal/orchestrator"
	"github.com/specialistvlad/launchgrid/internal/subst"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	loader   config.Loader
	runner   subst.CommandRunner
	packages subst.PackageLocator
	// starter and publisher override the process supervisor and the
	// socket.io publisher built from the config.
	starter   orchestrator.Starter
	publisher events.Publisher

	orch       atomic.Pointer[orchestrator.Orchestrator]
	httpServer *http.Server
}

// Option replaces one of the App's collaborators.
type Option func(*App)

// WithLoader replaces the HCL loader.
func WithLoader(l config.Loader) Option {
	return func(a *App) { a.loader = l }
}

// WithRunner replaces the runner of command substitutions.
func WithRunner(r subst.CommandRunner) Option {
	return func(a *App) { a.runner = r }
}

// WithPackages replaces the AMENT_PREFIX_PATH package index.
func WithPackages(p subst.PackageLocator) Option {
	return func(a *App) { a.packages = p }
}

// WithStarter replaces the process supervisor.
func WithStarter(s orchestrator.Starter) Option {
	return func(a *App) { a.starter = s }
}

// WithPublisher replaces the lifecycle event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// NewApp is the constructor for the main application. Logs and the
// output of show-args, dry-run and screen units all go to outW.
func NewApp(outW io.Writer, cfg *Config, opts ...Option) *App {
	a := &App{
		outW:     outW,
		logger:   newLogger(cfg.LogLevel, cfg.LogFormat, outW),
		config:   cfg,
		loader:   hcl.NewLoader(),
		runner:   subst.ExecRunner{},
		packages: ament.FromEnv(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger.Debug("Logger configured successfully.", "mode", cfg.Mode.String())
	return a
}

// State reports the state of the running launch, or INIT before one exists.
func (a *App) State() orchestrator.State {
	if o := a.orch.Load(); o != nil {
		return o.State()
	}
	return orchestrator.StateInit
}
