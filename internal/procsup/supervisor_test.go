//go:build !windows

package procsup

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/specialistvlad/launchgrid/internal/testutil"
	"github.com/specialistvlad/launchgrid/internal/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh is not available")
	}
	return sh
}

func shellCommand(label, script string, output unit.OutputPolicy) *unit.Command {
	return &unit.Command{
		Label:  label,
		Kind:   unit.KindProcess,
		Name:   label,
		Path:   "sh",
		Args:   []string{"-c", script},
		Output: output,
	}
}

func waitDone(t *testing.T, p interface{ Done() <-chan struct{} }) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit in time")
	}
}

func TestStart_ScreenOutputIsPrefixed(t *testing.T) {
	requireShell(t)
	screen := &testutil.SafeBuffer{}
	s := New(Options{Screen: screen})

	p, err := s.Start(context.Background(), shellCommand("gazebo", "echo one; echo two", unit.OutputScreen))
	require.NoError(t, err)
	waitDone(t, p)

	assert.Equal(t, 0, p.ExitCode())
	assert.Equal(t, "[gazebo] one\n[gazebo] two\n", screen.String())
}

func TestStart_LogOutputGoesToFile(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	screen := &testutil.SafeBuffer{}
	s := New(Options{Screen: screen, LogDir: dir})

	p, err := s.Start(context.Background(), shellCommand("rviz", "echo to-log; echo err >&2", unit.OutputLog))
	require.NoError(t, err)
	waitDone(t, p)

	data, err := os.ReadFile(LogFile(dir, "rviz"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "to-log\n")
	assert.Contains(t, string(data), "err\n")
	assert.Empty(t, screen.String())
}

func TestStart_BothOutputs(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	screen := &testutil.SafeBuffer{}
	s := New(Options{Screen: screen, LogDir: dir})

	p, err := s.Start(context.Background(), shellCommand("spawn", "printf partial", unit.OutputBoth))
	require.NoError(t, err)
	waitDone(t, p)

	data, err := os.ReadFile(filepath.Join(dir, "spawn.log"))
	require.NoError(t, err)
	assert.Equal(t, "partial", string(data))
	assert.Equal(t, "[spawn] partial\n", screen.String())
}

func TestStart_ExitCodeAndEnv(t *testing.T) {
	requireShell(t)
	s := New(Options{Screen: &testutil.SafeBuffer{}})

	cmd := shellCommand("exit", `exit "$CODE"`, unit.OutputLog)
	cmd.Env = []string{"CODE=7"}
	p, err := s.Start(context.Background(), cmd)
	require.NoError(t, err)
	waitDone(t, p)

	assert.Equal(t, 7, p.ExitCode())
}

func TestStart_ExecutableNotFound(t *testing.T) {
	s := New(Options{})
	cmd := &unit.Command{Label: "ghost", Path: "definitely-not-an-executable-launchgrid", Output: unit.OutputLog}

	_, err := s.Start(context.Background(), cmd)
	require.ErrorIs(t, err, exec.ErrNotFound)
	assert.Contains(t, err.Error(), `"ghost"`)
}

func TestTerminate_InterruptIsEnough(t *testing.T) {
	requireShell(t)
	s := New(Options{Screen: &testutil.SafeBuffer{}, InterruptTimeout: 2 * time.Second, TermTimeout: 2 * time.Second})

	p, err := s.Start(context.Background(), shellCommand("sleeper", "sleep 30", unit.OutputLog))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Terminate(ctx))

	assert.Equal(t, -2, p.ExitCode(), "killed by SIGINT")
}

func TestTerminate_EscalatesToKill(t *testing.T) {
	requireShell(t)
	s := New(Options{Screen: &testutil.SafeBuffer{}, InterruptTimeout: 100 * time.Millisecond, TermTimeout: 100 * time.Millisecond})

	// The shell ignores both polite signals; only SIGKILL stops it.
	p, err := s.Start(context.Background(), shellCommand("stubborn", `trap "" INT TERM; while :; do sleep 0.05; done`, unit.OutputLog))
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Terminate(ctx))

	assert.Equal(t, -9, p.ExitCode())
}

func TestTerminate_AlreadyExited(t *testing.T) {
	requireShell(t)
	s := New(Options{Screen: &testutil.SafeBuffer{}})

	p, err := s.Start(context.Background(), shellCommand("quick", "exit 0", unit.OutputLog))
	require.NoError(t, err)
	waitDone(t, p)

	require.NoError(t, p.Terminate(context.Background()))
}

func TestTerminate_SignalsGroupAfterLeaderExit(t *testing.T) {
	requireShell(t)
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	s := New(Options{Screen: &testutil.SafeBuffer{}, InterruptTimeout: 100 * time.Millisecond, TermTimeout: 2 * time.Second})

	// --- Arrange ---
	// The leader backgrounds a child into its group and exits right away.
	script := "sleep 30 >/dev/null 2>&1 & echo $! > " + pidFile + "; exit 0"
	p, err := s.Start(context.Background(), shellCommand("spawner", script, unit.OutputLog))
	require.NoError(t, err)
	waitDone(t, p)

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	child, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	require.False(t, processGone(child), "child should outlive the leader")

	// --- Act ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = p.Terminate(ctx)

	// --- Assert ---
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return processGone(child) }, 5*time.Second, 20*time.Millisecond,
		"child left in the group must be stopped")
}

// processGone reports whether pid no longer runs. An unreaped zombie counts
// as gone.
func processGone(pid int) bool {
	if err := syscall.Kill(pid, 0); errors.Is(err, syscall.ESRCH) {
		return true
	}
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return false
	}
	// The state follows the parenthesised command name.
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	return len(fields) > 0 && fields[0] == "Z"
}

func TestTerminatePID(t *testing.T) {
	sh := requireShell(t)
	s := New(Options{InterruptTimeout: time.Second, TermTimeout: time.Second})

	// --- Arrange ---
	// A process started outside the supervisor, as an earlier launch would
	// have left it behind.
	orphan := exec.Command(sh, "-c", "sleep 30")
	configureProcess(orphan)
	require.NoError(t, orphan.Start())
	reaped := make(chan struct{})
	go func() {
		_ = orphan.Wait()
		close(reaped)
	}()

	// --- Act ---
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.TerminatePID(ctx, orphan.Process.Pid)

	// --- Assert ---
	require.NoError(t, err)
	select {
	case <-reaped:
	case <-time.After(5 * time.Second):
		t.Fatal("orphan was not stopped")
	}
}

func TestTerminatePID_Gone(t *testing.T) {
	s := New(Options{})
	require.NoError(t, s.TerminatePID(context.Background(), 0))
	require.NoError(t, s.TerminatePID(context.Background(), -1))
}

func TestPrefixWriter(t *testing.T) {
	var sb strings.Builder
	pw := newPrefixWriter(&sb, "[ekf] ")

	_, _ = pw.Write([]byte("hel"))
	_, _ = pw.Write([]byte("lo\nwor"))
	assert.Equal(t, "[ekf] hello\n", sb.String())

	_, _ = pw.Write([]byte("ld\n\n"))
	assert.Equal(t, "[ekf] hello\n[ekf] world\n[ekf] \n", sb.String())

	pw.Flush()
	assert.Equal(t, "[ekf] hello\n[ekf] world\n[ekf] \n", sb.String(), "nothing buffered")

	_, _ = pw.Write([]byte("tail"))
	pw.Flush()
	assert.True(t, strings.HasSuffix(sb.String(), "[ekf] tail\n"))
}
