package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/launchgrid/internal/arguments"
	"github.com/specialistvlad/launchgrid/internal/events"
	"github.com/specialistvlad/launchgrid/internal/journal"
	"github.com/specialistvlad/launchgrid/internal/orchestrator"
	"github.com/specialistvlad/launchgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T, cfg Config) *Config {
	t.Helper()
	c, err := NewConfig(cfg)
	require.NoError(t, err)
	return c
}

func TestRun_ShowArgs(t *testing.T) {
	out := &testutil.SafeBuffer{}
	cfg := newTestConfig(t, Config{LaunchPaths: []string{exampleLaunchDir}, Mode: ModeShowArgs, LogLevel: "error"})

	err := NewApp(out, cfg).Run(context.Background())
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Arguments (pass arguments as '<name>:=<value>'):")
	assert.Contains(t, text, "'model':\n        Absolute path to robot model file\n")
	assert.Contains(t, text, `(default: path_join(package_share("scout_bot_description"), "src", "description", "scout_bot_description.urdf"))`)
	assert.Contains(t, text, "Valid choices are: [True, False, true, false]")
	assert.Contains(t, text, `(default: "True")`)
}

func TestRun_DryRun(t *testing.T) {
	out := &testutil.SafeBuffer{}
	runner, locator := exampleEnv(t)
	cfg := newTestConfig(t, Config{
		LaunchPaths: []string{exampleLaunchDir},
		Overrides:   map[string]string{"use_sim_time": "False"},
		Mode:        ModeDryRun,
		LogLevel:    "error",
	})

	err := NewApp(out, cfg, WithRunner(runner), WithPackages(locator)).Run(context.Background())
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "gazebo --verbose -s libgazebo_ros_init.so -s libgazebo_ros_factory.so")
	assert.Contains(t, text, `/opt/ros/lib/robot_state_publisher/robot_state_publisher --ros-args -p "robot_description:=<robot name=\"scout_bot\"/>"`)
	assert.Contains(t, text, "use_sim_time:=False")
	assert.Len(t, runner.Calls(), 1)
}

func TestRun_DryRunUnknownOverride(t *testing.T) {
	runner, locator := exampleEnv(t)
	cfg := newTestConfig(t, Config{
		LaunchPaths: []string{exampleLaunchDir},
		Overrides:   map[string]string{"use_sim_tim": "False"},
		Mode:        ModeDryRun,
		LogLevel:    "error",
	})

	err := NewApp(&testutil.SafeBuffer{}, cfg, WithRunner(runner), WithPackages(locator)).Run(context.Background())
	require.ErrorIs(t, err, arguments.ErrUnknownArgument)
}

func TestRun_LoadError(t *testing.T) {
	cfg := newTestConfig(t, Config{LaunchPaths: []string{filepath.Join(t.TempDir(), "missing.hcl")}, LogLevel: "error"})

	err := NewApp(&testutil.SafeBuffer{}, cfg).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load launch description")
}

func TestRun_LaunchUntilInterrupted(t *testing.T) {
	// --- Arrange ---
	runner, locator := exampleEnv(t)
	starter := newFakeStarter()
	publisher := &events.Memory{}
	journalPath := filepath.Join(t.TempDir(), "journal.db")
	cfg := newTestConfig(t, Config{
		LaunchPaths: []string{exampleLaunchDir},
		JournalPath: journalPath,
		LogLevel:    "error",
	})
	a := NewApp(&testutil.SafeBuffer{}, cfg,
		WithRunner(runner), WithPackages(locator), WithStarter(starter), WithPublisher(publisher))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		defer cancel()
		for i := 0; i < 6; i++ {
			<-starter.running
		}
		assert.Eventually(t, func() bool { return a.State() == orchestrator.StateRunning }, time.Second, time.Millisecond)
	}()

	// --- Act ---
	err := a.Run(ctx)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"gazebo", "joint_state_publisher", "robot_state_publisher", "spawn_entity", "robot_localization", "rviz"}, starter.labels())
	assert.Equal(t, orchestrator.StateDone, a.State())
	assert.Contains(t, publisher.Types(), events.UnitStarted)

	j, err := journal.Open(context.Background(), journalPath)
	require.NoError(t, err)
	defer j.Close()
	orphans, err := j.Orphans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orphans, "every unit exit is journaled at shutdown")
}

func TestCleanup_ReapsGoneUnits(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh is not available")
	}
	ctx := context.Background()
	journalPath := filepath.Join(t.TempDir(), "journal.db")

	// --- Arrange ---
	// A unit whose process has already exited, but whose exit was never
	// journaled.
	gone := exec.Command(sh, "-c", "exit 0")
	require.NoError(t, gone.Run())

	j, err := journal.Open(ctx, journalPath)
	require.NoError(t, err)
	session, err := j.Begin(ctx, []string{"gazebo.hcl"})
	require.NoError(t, err)
	require.NoError(t, session.UnitStarted(ctx, 0, "gazebo", gone.Process.Pid, []string{"gazebo"}))
	require.NoError(t, j.Close())

	out := &testutil.SafeBuffer{}
	cfg := newTestConfig(t, Config{Mode: ModeCleanup, JournalPath: journalPath, LogLevel: "error"})

	// --- Act ---
	err = NewApp(out, cfg).Run(ctx)

	// --- Assert ---
	require.NoError(t, err)
	assert.Contains(t, out.String(), fmt.Sprintf("Stopped unit \"gazebo\" (pid %d) of session %s (running).", gone.Process.Pid, session.ID))
	assert.Contains(t, out.String(), "Cleaned up 1 unit(s), skipped 0 of running launches.")

	j, err = journal.Open(ctx, journalPath)
	require.NoError(t, err)
	defer j.Close()
	orphans, err := j.Orphans(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestEventPublisher_UnreachableServerDisablesEvents(t *testing.T) {
	cfg := newTestConfig(t, Config{
		LaunchPaths:    []string{exampleLaunchDir},
		EventsURL:      "http://127.0.0.1:1",
		EventsTimeout:  300 * time.Millisecond,
		EventsInsecure: true,
	})
	a := NewApp(&testutil.SafeBuffer{}, cfg)

	started := time.Now()
	pub, closePublisher := a.eventPublisher(context.Background())
	defer closePublisher()

	assert.IsType(t, events.Nop{}, pub)
	assert.Less(t, time.Since(started), 5*time.Second, "connect must give up within the configured timeout")
}

func TestHealthHandler(t *testing.T) {
	cfg := newTestConfig(t, Config{LaunchPaths: []string{exampleLaunchDir}, LogLevel: "error"})
	a := NewApp(&testutil.SafeBuffer{}, cfg)

	rec := httptest.NewRecorder()
	a.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"INIT"}`, rec.Body.String())

	o := orchestrator.New(newFakeStarter())
	_, _ = o.Shutdown(context.Background())
	a.orch.Store(o)

	rec = httptest.NewRecorder()
	a.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"state":"DONE"}`, rec.Body.String())
}

func TestShellJoin(t *testing.T) {
	assert.Equal(t, `rviz2 -d "/a b/c.rviz" ""`, shellJoin([]string{"rviz2", "-d", "/a b/c.rviz", ""}))
}
