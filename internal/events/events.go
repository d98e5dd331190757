// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package events publishes orchestrator and launch unit lifecycle events to
// an optional observer.
package events

import (
	"context"
	"sync"
	"time"
)

// Type names a lifecycle event. It is also the socket.io event name.
type Type string

const (
	StateChanged  Type = "launch.state"
	UnitStarted   Type = "unit.started"
	UnitExited    Type = "unit.exited"
	LaunchAborted Type = "launch.aborted"
)

// Event is one lifecycle notification.
type Event struct {
	Type    Type
	Session string
	State   string
	Unit    string
	Pid     int
	// ExitCode is only meaningful for UnitExited.
	ExitCode int
	Error    string
	Time     time.Time
}

// Payload renders the event as a plain map for transports that encode JSON.
func (e Event) Payload() map[string]any {
	p := map[string]any{
		"type": string(e.Type),
		"time": e.Time.UTC().Format(time.RFC3339Nano),
	}
	if e.Session != "" {
		p["session"] = e.Session
	}
	if e.State != "" {
		p["state"] = e.State
	}
	if e.Unit != "" {
		p["unit"] = e.Unit
		p["pid"] = e.Pid
	}
	if e.Type == UnitExited {
		p["exit_code"] = e.ExitCode
	}
	if e.Error != "" {
		p["error"] = e.Error
	}
	return p
}

// Publisher delivers events. Publish must not block the caller for long and
// never fails the launch; delivery problems are the publisher's to log.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Memory keeps published events in memory.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Publish(_ context.Context, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Types returns the types of the published events, in order.
func (m *Memory) Types() []Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Type, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Type
	}
	return out
}
