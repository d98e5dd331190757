package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/specialistvlad/launchgrid/internal/orchestrator"
	"github.com/specialistvlad/launchgrid/internal/testutil"
	"github.com/specialistvlad/launchgrid/internal/unit"
	"github.com/stretchr/testify/require"
)

const exampleLaunchDir = "../../examples/scout_bot_description/launch"

// exampleEnv returns a runner and a package locator that make the example
// launch description materialize without ROS installed.
func exampleEnv(t *testing.T) (*testutil.FakeRunner, *testutil.FakeLocator) {
	t.Helper()
	share, err := filepath.Abs("../../examples/scout_bot_description")
	require.NoError(t, err)

	urdf := filepath.Join(share, "src", "description", "scout_bot_description.urdf")
	runner := testutil.NewFakeRunner().On("xacro "+urdf, testutil.FakeResult{Stdout: `<robot name="scout_bot"/>`})
	locator := &testutil.FakeLocator{
		Shares: map[string]string{"scout_bot_description": share},
		Executables: map[string]string{
			"joint_state_publisher/joint_state_publisher": "/opt/ros/lib/joint_state_publisher/joint_state_publisher",
			"robot_state_publisher/robot_state_publisher": "/opt/ros/lib/robot_state_publisher/robot_state_publisher",
			"gazebo_ros/spawn_entity.py":                  "/opt/ros/lib/gazebo_ros/spawn_entity.py",
			"robot_localization/ekf_node":                 "/opt/ros/lib/robot_localization/ekf_node",
			"rviz2/rviz2":                                 "/opt/ros/lib/rviz2/rviz2",
		},
	}
	return runner, locator
}

type fakeProcess struct {
	label string
	pid   int
	done  chan struct{}
	once  sync.Once
}

func (p *fakeProcess) Label() string         { return p.label }
func (p *fakeProcess) Pid() int              { return p.pid }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) ExitCode() int         { return -2 }

func (p *fakeProcess) Terminate(context.Context) error {
	p.once.Do(func() { close(p.done) })
	return nil
}

// fakeStarter records commands instead of running them.
type fakeStarter struct {
	mu      sync.Mutex
	started []*unit.Command
	// running is signalled after every start.
	running chan string
}

func newFakeStarter() *fakeStarter {
	return &fakeStarter{running: make(chan string, 16)}
}

func (s *fakeStarter) Start(_ context.Context, cmd *unit.Command) (orchestrator.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, cmd)
	s.running <- cmd.Label
	return &fakeProcess{label: cmd.Label, pid: 1000 + len(s.started), done: make(chan struct{})}, nil
}

func (s *fakeStarter) labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.started))
	for i, cmd := range s.started {
		out[i] = cmd.Label
	}
	return out
}
