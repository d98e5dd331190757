// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package subst implements deferred substitutions: small expression trees that
// are evaluated to strings only when a consumer reads them.
//
// An Expression is one of a fixed set of node types (Literal, PathJoin,
// Concat, Command, ArgRef, EnvVar, PackageShare). Evaluation happens against
// an Env that supplies the collaborators an expression may need: the argument
// resolver for ArgRef, the command runner for Command and the package locator
// for PackageShare. Nothing is evaluated at construction time, so an
// expression that is never consumed never runs its command.
package subst
