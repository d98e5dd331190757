//go:build !windows

package procsup

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

var stageSignals = []syscall.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGKILL}

func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func stageSignal(stage int) syscall.Signal {
	if stage >= len(stageSignals) {
		return syscall.SIGKILL
	}
	return stageSignals[stage]
}

func stageName(stage int) string {
	return stageSignal(stage).String()
}

// signalPID signals the process group led by pid, or pid alone when it has no
// group of its own.
func signalPID(pid, stage int) error {
	sig := stageSignal(stage)
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid == pid {
		// Negative PGID targets the full process group.
		return syscall.Kill(-pgid, sig)
	}
	return syscall.Kill(pid, sig)
}

// signalGroup signals every process of the group pgid.
func signalGroup(pgid, stage int) error {
	err := syscall.Kill(-pgid, stageSignal(stage))
	if errors.Is(err, syscall.ESRCH) {
		return errGroupGone
	}
	return err
}

func groupAlive(pgid int) bool {
	err := syscall.Kill(-pgid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func alive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func exitStatus(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return state.ExitCode()
}
