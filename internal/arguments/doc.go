// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package arguments provides the launch argument registry.
//
// Arguments are declared once with a default expression and a description.
// During a launch session the registry answers Resolve calls: a caller
// override wins without evaluating the default, otherwise the default is
// evaluated through the substitution resolver and cached for the rest of the
// session. The registry also serves as the subst.ArgResolver for its own
// defaults, which is where reference cycles are detected.
package arguments
