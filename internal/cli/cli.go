package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/launchgrid/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("launchgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
launchgrid - Declarative launcher for ROS 2 robot stacks.

Usage:
  launchgrid [options] LAUNCH_PATH [name:=value ...]
  launchgrid -cleanup -journal PATH

Options must come before LAUNCH_PATH.

Arguments:
  LAUNCH_PATH
    Path to a single .hcl launch file or a directory containing .hcl files.
  name:=value
    Override the launch argument "name". Overrides win over -arg, which wins
    over -args-file.

Options:
`)
		flagSet.PrintDefaults()
	}

	var argFlags overridesFlag
	flagSet.Var(&argFlags, "arg", "Launch argument override as name=value. Repeatable.")
	argsFileFlag := flagSet.String("args-file", "", "TOML file with an [arguments] table of launch argument overrides.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logDirFlag := flagSet.String("log-dir", "", "Directory for per-unit log files. Empty discards the output of 'log' units.")
	shutdownFlag := flagSet.Duration("shutdown-timeout", 5*time.Second, "Grace period after SIGINT and after SIGTERM before a unit is killed.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	journalFlag := flagSet.String("journal", "", "SQLite file recording launched units. Required by -cleanup.")
	eventsURLFlag := flagSet.String("events-url", "", "socket.io server receiving lifecycle events.")
	eventsNSFlag := flagSet.String("events-namespace", "", "socket.io namespace for lifecycle events.")
	eventsTimeoutFlag := flagSet.Duration("events-timeout", 10*time.Second, "How long to wait for the -events-url connection.")
	eventsInsecureFlag := flagSet.Bool("events-insecure", false, "Skip TLS certificate verification for -events-url.")
	showArgsFlag := flagSet.Bool("show-args", false, "Print the launch arguments and exit.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Print the resolved commands without starting them.")
	cleanupFlag := flagSet.Bool("cleanup", false, "Stop units left running by earlier launches recorded in -journal.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	mode := app.ModeLaunch
	selected := 0
	for _, m := range []struct {
		set  bool
		mode app.Mode
	}{
		{*showArgsFlag, app.ModeShowArgs},
		{*dryRunFlag, app.ModeDryRun},
		{*cleanupFlag, app.ModeCleanup},
	} {
		if m.set {
			mode = m.mode
			selected++
		}
	}
	if selected > 1 {
		return nil, false, usageError("-show-args, -dry-run and -cleanup are mutually exclusive")
	}

	var paths []string
	cliOverrides := make(map[string]string)
	for _, arg := range flagSet.Args() {
		if name, value, ok := parseAssignment(arg); ok {
			cliOverrides[name] = value
			continue
		}
		if strings.Contains(arg, ":=") {
			return nil, false, usageError("invalid launch argument %q: expected name:=value", arg)
		}
		// flag stops at the first positional, so later options land here.
		if len(arg) > 1 && strings.HasPrefix(arg, "-") {
			return nil, false, usageError("option %q must come before LAUNCH_PATH", arg)
		}
		paths = append(paths, arg)
	}
	slog.Debug("Launch paths determined.", "paths", paths)

	if len(paths) == 0 && mode != app.ModeCleanup {
		slog.Debug("No launch path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	if mode == app.ModeCleanup && (len(paths) > 0 || len(cliOverrides) > 0) {
		return nil, false, usageError("-cleanup takes no launch path or launch arguments")
	}

	overrides := make(map[string]string)
	if *argsFileFlag != "" {
		fromFile, err := loadOverridesFile(*argsFileFlag)
		if err != nil {
			return nil, false, usageError("%v", err)
		}
		for k, v := range fromFile {
			overrides[k] = v
		}
	}
	for k, v := range argFlags.values {
		overrides[k] = v
	}
	for k, v := range cliOverrides {
		overrides[k] = v
	}

	config, err := app.NewConfig(app.Config{
		LaunchPaths:     paths,
		Overrides:       overrides,
		LogFormat:       *logFormatFlag,
		LogLevel:        *logLevelFlag,
		LogDir:          *logDirFlag,
		ShutdownTimeout: *shutdownFlag,
		HealthcheckPort: *healthPortFlag,
		JournalPath:     *journalFlag,
		EventsURL:       *eventsURLFlag,
		EventsNamespace: *eventsNSFlag,
		EventsTimeout:   *eventsTimeoutFlag,
		EventsInsecure:  *eventsInsecureFlag,
		Mode:            mode,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "mode", config.Mode.String(), "overrides", len(config.Overrides))
	return config, false, nil
}
