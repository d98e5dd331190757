// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package arguments

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateArgument    = errors.New("duplicate argument")
	ErrUnknownArgument      = errors.New("unknown argument")
	ErrCircularReference    = errors.New("circular reference")
	ErrMissingArgumentValue = errors.New("missing argument value")
	ErrInvalidChoice        = errors.New("invalid choice")
)

// UnknownArgumentError names an argument that was never declared.
type UnknownArgumentError struct {
	Name string
	// Declared lists the names that do exist, to help spot typos.
	Declared []string
}

func (e *UnknownArgumentError) Error() string {
	msg := fmt.Sprintf("unknown launch argument %q", e.Name)
	if len(e.Declared) > 0 {
		msg += " (declared: " + strings.Join(e.Declared, ", ") + ")"
	}
	return msg
}

func (e *UnknownArgumentError) Is(target error) bool {
	return target == ErrUnknownArgument
}

// CircularReferenceError lists the arguments forming a reference cycle, with
// the repeated name at both ends.
type CircularReferenceError struct {
	Cycle []string
}

func (e *CircularReferenceError) Error() string {
	return "circular reference between launch arguments: " + strings.Join(e.Cycle, " -> ")
}

func (e *CircularReferenceError) Is(target error) bool {
	return target == ErrCircularReference
}
