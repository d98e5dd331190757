//go:build windows

package procsup

import (
	"os"
	"os/exec"
)

func configureProcess(cmd *exec.Cmd) {}

func stageName(int) string { return "kill" }

func signalPID(pid, _ int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

// signalGroup kills the process pid. Windows has no process groups to
// signal, so only the leader is stopped.
func signalGroup(pid, _ int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return errGroupGone
	}
	if err := p.Kill(); err != nil {
		return errGroupGone
	}
	return nil
}

func groupAlive(int) bool { return false }

func alive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}

func exitStatus(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	return state.ExitCode()
}
