// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package subst

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUndefinedReference is returned when an expression references an
	// argument that was never declared.
	ErrUndefinedReference = errors.New("undefined reference")
	// ErrCommandExecution is returned when a command substitution cannot be
	// started or exits with a nonzero status.
	ErrCommandExecution = errors.New("command execution failed")
	// ErrEnvironmentVariableNotSet is returned by EnvVar when the variable is
	// unset and no default was given.
	ErrEnvironmentVariableNotSet = errors.New("environment variable not set")
)

// UndefinedReferenceError names the argument an ArgRef could not find.
type UndefinedReferenceError struct {
	Name string
}

func (e *UndefinedReferenceError) Error() string {
	return fmt.Sprintf("undefined reference to argument %q", e.Name)
}

func (e *UndefinedReferenceError) Is(target error) bool {
	return target == ErrUndefinedReference
}

// CommandError describes a failed command substitution.
type CommandError struct {
	Argv     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	cmdline := strings.Join(e.Argv, " ")
	stderr := strings.TrimSpace(e.Stderr)
	switch {
	case e.ExitCode == 127 && e.Err != nil:
		return fmt.Sprintf("command %q failed: %v", cmdline, e.Err)
	case e.ExitCode > 0 && stderr != "":
		return fmt.Sprintf("command %q exited with status %d: %s", cmdline, e.ExitCode, stderr)
	case e.ExitCode > 0:
		return fmt.Sprintf("command %q exited with status %d", cmdline, e.ExitCode)
	default:
		return fmt.Sprintf("command %q failed: %v", cmdline, e.Err)
	}
}

func (e *CommandError) Is(target error) bool {
	return target == ErrCommandExecution
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
