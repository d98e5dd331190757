// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLaunchAborted  = errors.New("launch aborted")
	ErrAlreadyStarted = errors.New("orchestrator already started")
)

// AbortedError reports the unit whose materialization or start failed.
type AbortedError struct {
	Unit string
	// Index is the unit's position in the launch description.
	Index int
	// Started lists the labels of units that were running at the time.
	Started []string
	Err     error
}

func (e *AbortedError) Error() string {
	msg := fmt.Sprintf("launch aborted at unit %q (#%d): %v", e.Unit, e.Index, e.Err)
	if len(e.Started) > 0 {
		msg += "; already started: " + strings.Join(e.Started, ", ")
	}
	return msg
}

func (e *AbortedError) Is(target error) bool {
	return target == ErrLaunchAborted
}

func (e *AbortedError) Unwrap() error {
	return e.Err
}
