// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// FakeResult is the programmed outcome of one command line.
type FakeResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// FakeRunner records command substitutions instead of running them.
// Unprogrammed command lines behave like a missing executable.
type FakeRunner struct {
	mu      sync.Mutex
	results map[string]FakeResult
	calls   []string
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{results: make(map[string]FakeResult)}
}

// On programs the result for the space-joined command line.
func (r *FakeRunner) On(cmdline string, res FakeResult) *FakeRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[cmdline] = res
	return r
}

// Run satisfies subst.CommandRunner.
func (r *FakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, int, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmdline)

	res, ok := r.results[cmdline]
	if !ok {
		return nil, nil, 127, fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	if res.ExitCode != 0 {
		return []byte(res.Stdout), []byte(res.Stderr), res.ExitCode, fmt.Errorf("exit status %d", res.ExitCode)
	}
	return []byte(res.Stdout), []byte(res.Stderr), 0, nil
}

// Calls returns the command lines run so far.
func (r *FakeRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// ErrFakePackageNotFound is returned by FakeLocator for unknown packages.
var ErrFakePackageNotFound = errors.New("package not found")

// FakeLocator maps package names to share directories and executables to
// paths without touching the file system.
type FakeLocator struct {
	Shares      map[string]string
	Executables map[string]string // key is "pkg/executable"
}

// Share satisfies subst.PackageLocator.
func (l *FakeLocator) Share(pkg string) (string, error) {
	if dir, ok := l.Shares[pkg]; ok {
		return dir, nil
	}
	return "", fmt.Errorf("%w: %s", ErrFakePackageNotFound, pkg)
}

// Executable satisfies subst.PackageLocator.
func (l *FakeLocator) Executable(pkg, executable string) (string, error) {
	if path, ok := l.Executables[pkg+"/"+executable]; ok {
		return path, nil
	}
	return "", fmt.Errorf("%w: %s/%s", ErrFakePackageNotFound, pkg, executable)
}
