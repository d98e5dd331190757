package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestBegin_AssignsUUID(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	s, err := j.Begin(ctx, []string{"launch/gazebo.hcl"})
	require.NoError(t, err)

	_, err = uuid.Parse(s.ID)
	require.NoError(t, err)

	status, err := j.SessionStatus(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, status)

	require.NoError(t, s.Finish(ctx, StatusDone))
	status, err = j.SessionStatus(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, status)
}

func TestOrphans(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	// --- Arrange ---
	s, err := j.Begin(ctx, []string{"gazebo.hcl"})
	require.NoError(t, err)
	require.NoError(t, s.UnitStarted(ctx, 0, "gazebo", 101, []string{"gazebo", "--verbose"}))
	require.NoError(t, s.UnitStarted(ctx, 1, "robot_state_publisher", 102, []string{"/opt/ros/lib/robot_state_publisher/robot_state_publisher"}))
	require.NoError(t, s.UnitStarted(ctx, 2, "rviz", 103, []string{"rviz2", "-d", "/cfg/rviz.rviz"}))
	require.NoError(t, s.UnitExited(ctx, "robot_state_publisher", 0))

	// --- Act ---
	orphans, err := j.Orphans(ctx)
	require.NoError(t, err)

	// --- Assert ---
	want := []Orphan{
		{SessionID: s.ID, LauncherPid: os.Getpid(), Seq: 0, Label: "gazebo", Pid: 101, Argv: []string{"gazebo", "--verbose"}},
		{SessionID: s.ID, LauncherPid: os.Getpid(), Seq: 2, Label: "rviz", Pid: 103, Argv: []string{"rviz2", "-d", "/cfg/rviz.rviz"}},
	}
	if diff := cmp.Diff(want, orphans, cmpopts.IgnoreFields(Orphan{}, "StartedAt")); diff != "" {
		t.Errorf("Orphans() mismatch (-want +got):\n%s", diff)
	}
	for _, o := range orphans {
		assert.WithinDuration(t, time.Now(), o.StartedAt, time.Minute)
	}

	require.NoError(t, j.MarkReaped(ctx, s.ID, "gazebo"))
	orphans, err = j.Orphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "rviz", orphans[0].Label)
}

func TestUnknownUnit(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()
	s, err := j.Begin(ctx, nil)
	require.NoError(t, err)

	require.ErrorIs(t, s.UnitExited(ctx, "ghost", 1), ErrUnknownUnit)
	require.ErrorIs(t, j.MarkReaped(ctx, s.ID, "ghost"), ErrUnknownUnit)
}

func TestUnitStarted_DuplicateLabel(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()
	s, err := j.Begin(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, s.UnitStarted(ctx, 0, "rviz", 1, []string{"rviz2"}))
	require.Error(t, s.UnitStarted(ctx, 1, "rviz", 2, []string{"rviz2"}))
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(ctx, path)
	require.NoError(t, err)
	s, err := j.Begin(ctx, []string{"a.hcl"})
	require.NoError(t, err)
	require.NoError(t, s.UnitStarted(ctx, 0, "gazebo", 4242, []string{"gazebo"}))
	require.NoError(t, j.Close())

	j, err = Open(ctx, path)
	require.NoError(t, err)
	defer j.Close()

	orphans, err := j.Orphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, 4242, orphans[0].Pid)
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "journal.db"))
	require.Error(t, err)
}

func TestSessionStatus_Unknown(t *testing.T) {
	j := openTemp(t)
	_, err := j.SessionStatus(context.Background(), "nope")
	require.ErrorIs(t, err, sql.ErrNoRows)
}
