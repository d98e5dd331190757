package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	overrides := map[string]string{"use_sim_time": "False"}
	cfg, err := NewConfig(Config{LaunchPaths: []string{"launch"}, Overrides: overrides})
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ModeLaunch, cfg.Mode)

	overrides["use_sim_time"] = "True"
	assert.Equal(t, "False", cfg.Overrides["use_sim_time"], "the config keeps its own copy of the overrides")
}

func TestNewConfig_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "no launch path", cfg: Config{}, wantErr: "LaunchPaths is a required"},
		{name: "cleanup without journal", cfg: Config{Mode: ModeCleanup}, wantErr: "cleanup needs a journal path"},
		{name: "bad log format", cfg: Config{LaunchPaths: []string{"a"}, LogFormat: "xml"}, wantErr: `invalid log format "xml"`},
		{name: "bad log level", cfg: Config{LaunchPaths: []string{"a"}, LogLevel: "loud"}, wantErr: `invalid log level "loud"`},
		{name: "negative timeout", cfg: Config{LaunchPaths: []string{"a"}, ShutdownTimeout: -time.Second}, wantErr: "must not be negative"},
		{name: "bad port", cfg: Config{LaunchPaths: []string{"a"}, HealthcheckPort: 70000}, wantErr: "invalid healthcheck port"},
		{name: "namespace without url", cfg: Config{LaunchPaths: []string{"a"}, EventsNamespace: "/launch"}, wantErr: "without an events URL"},
		{name: "negative events timeout", cfg: Config{LaunchPaths: []string{"a"}, EventsTimeout: -time.Second}, wantErr: "events timeout must not be negative"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(tc.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewConfig_CleanupNeedsNoLaunchPath(t *testing.T) {
	cfg, err := NewConfig(Config{Mode: ModeCleanup, JournalPath: "journal.db", LogLevel: "DEBUG"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "launch", ModeLaunch.String())
	assert.Equal(t, "show-args", ModeShowArgs.String())
	assert.Equal(t, "dry-run", ModeDryRun.String())
	assert.Equal(t, "cleanup", ModeCleanup.String())
	assert.Equal(t, "mode(9)", Mode(9).String())
}
