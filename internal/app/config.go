package app

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode selects what Run does with the launch description.
type Mode int

const (
	// ModeLaunch starts every unit and supervises them until interrupted.
	ModeLaunch Mode = iota
	// ModeShowArgs prints the declared arguments and exits.
	ModeShowArgs
	// ModeDryRun prints the materialized commands without starting them.
	ModeDryRun
	// ModeCleanup stops units left running by earlier launches.
	ModeCleanup
)

func (m Mode) String() string {
	switch m {
	case ModeLaunch:
		return "launch"
	case ModeShowArgs:
		return "show-args"
	case ModeDryRun:
		return "dry-run"
	case ModeCleanup:
		return "cleanup"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	LaunchPaths []string // hcl files or directories
	Overrides   map[string]string

	LogFormat string
	LogLevel  string
	// LogDir receives a directory per session with one log file per unit.
	LogDir string

	// ShutdownTimeout is the grace period after SIGINT and again after
	// SIGTERM before a unit is killed.
	ShutdownTimeout time.Duration
	HealthcheckPort int

	JournalPath     string
	EventsURL       string
	EventsNamespace string
	// EventsTimeout bounds the socket.io connect. Zero uses the publisher default.
	EventsTimeout  time.Duration
	EventsInsecure bool

	Mode Mode
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	var errs []error

	if cfg.Mode == ModeCleanup {
		if cfg.JournalPath == "" {
			errs = append(errs, errors.New("cleanup needs a journal path"))
		}
	} else if len(cfg.LaunchPaths) == 0 {
		errs = append(errs, errors.New("LaunchPaths is a required configuration field and cannot be empty"))
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat))
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must not be negative, got %s", cfg.ShutdownTimeout))
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort))
	}
	if cfg.EventsNamespace != "" && cfg.EventsURL == "" {
		errs = append(errs, errors.New("events namespace given without an events URL"))
	}
	if cfg.EventsTimeout < 0 {
		errs = append(errs, fmt.Errorf("events timeout must not be negative, got %s", cfg.EventsTimeout))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	overrides := make(map[string]string, len(cfg.Overrides))
	for k, v := range cfg.Overrides {
		overrides[k] = v
	}
	cfg.Overrides = overrides
	return &cfg, nil
}
