// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package orchestrator runs a launch description: it resolves the launch
// arguments, materializes every unit in declared order, starts them through
// a Starter and supervises their shutdown.
//
// The orchestrator moves through the states
//
//	INIT -> RESOLVING -> STARTING -> RUNNING -> SHUTTING_DOWN -> DONE
//
// A failed start stops at SHUTTING_DOWN without starting further units; the
// units already started keep running until Shutdown is called. Units are not
// synchronized with each other beyond their start order.
package orchestrator
