package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/launchgrid/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParse_LaunchWithOverrides(t *testing.T) {
	// --- Arrange ---
	argsFile := writeFile(t, "overrides.toml", `
[arguments]
use_sim_time = false
model = "/from/file.urdf"
rvizconfig = "/from/file.rviz"
`)
	args := []string{
		"-args-file", argsFile,
		"-arg", "model=/from/flag.urdf",
		"-arg", "rvizconfig=/from/flag.rviz",
		"-log-level", "debug",
		"-shutdown-timeout", "2s",
		"launch/gazebo.hcl",
		"rvizconfig:=/from/positional.rviz",
	}

	// --- Act ---
	cfg, shouldExit, err := Parse(args, &bytes.Buffer{})

	// --- Assert ---
	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, []string{"launch/gazebo.hcl"}, cfg.LaunchPaths)
	assert.Equal(t, map[string]string{
		"use_sim_time": "false",
		"model":        "/from/flag.urdf",
		"rvizconfig":   "/from/positional.rviz",
	}, cfg.Overrides)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, app.ModeLaunch, cfg.Mode)
}

func TestParse_Modes(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want app.Mode
	}{
		{name: "show args", args: []string{"-show-args", "launch"}, want: app.ModeShowArgs},
		{name: "dry run", args: []string{"-dry-run", "launch", "a:=b"}, want: app.ModeDryRun},
		{name: "cleanup", args: []string{"-cleanup", "-journal", "j.db"}, want: app.ModeCleanup},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, shouldExit, err := Parse(tc.args, &bytes.Buffer{})
			require.NoError(t, err)
			require.False(t, shouldExit)
			assert.Equal(t, tc.want, cfg.Mode)
		})
	}
}

func TestParse_EventsOptions(t *testing.T) {
	// --- Arrange ---
	args := []string{
		"-events-url", "https://events.local:3000",
		"-events-namespace", "/launch",
		"-events-timeout", "750ms",
		"-events-insecure",
		"launch",
	}

	// --- Act ---
	cfg, shouldExit, err := Parse(args, &bytes.Buffer{})

	// --- Assert ---
	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "https://events.local:3000", cfg.EventsURL)
	assert.Equal(t, "/launch", cfg.EventsNamespace)
	assert.Equal(t, 750*time.Millisecond, cfg.EventsTimeout)
	assert.True(t, cfg.EventsInsecure)

	defaults, _, err := Parse([]string{"launch"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, defaults.EventsTimeout)
	assert.False(t, defaults.EventsInsecure)
}

func TestParse_DashAloneIsAPath(t *testing.T) {
	cfg, _, err := Parse([]string{"-"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, []string{"-"}, cfg.LaunchPaths)
}

func TestParse_Help(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{"-h"}, out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_NoPathPrintsUsage(t *testing.T) {
	out := &bytes.Buffer{}
	_, shouldExit, err := Parse(nil, out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Contains(t, out.String(), "LAUNCH_PATH")
}

func TestParse_UsageErrors(t *testing.T) {
	badToml := writeFile(t, "bad.toml", "[arguments]\nmodel = [1, 2]\n")
	unknownKey := writeFile(t, "unknown.toml", "[argumnets]\nmodel = \"x\"\n")

	testCases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "unknown flag", args: []string{"-nope"}, wantErr: "flag provided but not defined: -nope"},
		{name: "bad -arg", args: []string{"-arg", "model", "launch"}, wantErr: "expected name=value"},
		{name: "bad positional", args: []string{"launch", ":=x"}, wantErr: `invalid launch argument ":=x"`},
		{name: "option after path", args: []string{"launch", "-dry-run"}, wantErr: `option "-dry-run" must come before LAUNCH_PATH`},
		{name: "option after override", args: []string{"launch", "a:=b", "--log-level=debug"}, wantErr: `option "--log-level=debug" must come before`},
		{name: "negative events timeout", args: []string{"-events-url", "http://localhost:3000", "-events-timeout", "-1s", "launch"}, wantErr: "events timeout must not be negative"},
		{name: "two modes", args: []string{"-dry-run", "-show-args", "launch"}, wantErr: "mutually exclusive"},
		{name: "cleanup with path", args: []string{"-cleanup", "-journal", "j.db", "launch"}, wantErr: "-cleanup takes no launch path"},
		{name: "cleanup without journal", args: []string{"-cleanup"}, wantErr: "cleanup needs a journal path"},
		{name: "bad log format", args: []string{"-log-format", "xml", "launch"}, wantErr: "invalid log format"},
		{name: "missing args file", args: []string{"-args-file", filepath.Join(t.TempDir(), "none.toml"), "launch"}, wantErr: "load overrides file"},
		{name: "non scalar override", args: []string{"-args-file", badToml, "launch"}, wantErr: `argument "model" must be a string`},
		{name: "unknown toml table", args: []string{"-args-file", unknownKey, "launch"}, wantErr: "unknown keys argumnets"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Parse(tc.args, &bytes.Buffer{})
			require.Error(t, err)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantErr)
		})
	}
}

func TestOverridesFlag(t *testing.T) {
	var f overridesFlag
	require.NoError(t, f.Set("b=2"))
	require.NoError(t, f.Set("a=x=y"))
	assert.Equal(t, "a=x=y,b=2", f.String())
	require.Error(t, f.Set("=1"))
}
