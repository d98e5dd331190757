// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package arguments

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/specialistvlad/launchgrid/internal/ctxlog"
	"github.com/specialistvlad/launchgrid/internal/subst"
)

// Argument is a named, overridable launch configuration value.
type Argument struct {
	Name string
	// Default may be nil, in which case the caller must supply an override.
	Default     subst.Expression
	Description string
	// Choices, when non-empty, restricts the accepted values.
	Choices []string
}

// Registry holds the declared arguments of one launch session.
type Registry struct {
	decls     map[string]Argument
	order     []string
	overrides map[string]string
	cache     map[string]string
	// resolving is the stack of names whose defaults are being evaluated.
	resolving []string
	env       subst.Env
}

// Option configures the collaborators used to evaluate argument defaults.
type Option func(*Registry)

// WithRunner sets the runner for command substitutions.
func WithRunner(runner subst.CommandRunner) Option {
	return func(r *Registry) { r.env.Runner = runner }
}

// WithPackages sets the package locator for package_share substitutions.
func WithPackages(locator subst.PackageLocator) Option {
	return func(r *Registry) { r.env.Packages = locator }
}

// WithLookupEnv replaces os.LookupEnv for env substitutions.
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(r *Registry) { r.env.LookupEnv = lookup }
}

// New creates a registry with the caller-supplied overrides.
func New(overrides map[string]string, opts ...Option) *Registry {
	r := &Registry{
		decls:     make(map[string]Argument),
		overrides: make(map[string]string, len(overrides)),
		cache:     make(map[string]string),
	}
	for k, v := range overrides {
		r.overrides[k] = v
	}
	r.env.Args = r
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Env returns the evaluation environment bound to this registry. Expressions
// of launch units are evaluated against it so their argument references
// share the registry cache.
func (r *Registry) Env() *subst.Env {
	return &r.env
}

// Declare adds an argument. Names must be unique.
func (r *Registry) Declare(arg Argument) error {
	if _, exists := r.decls[arg.Name]; exists {
		return fmt.Errorf("%w: %q is already declared", ErrDuplicateArgument, arg.Name)
	}
	r.decls[arg.Name] = arg
	r.order = append(r.order, arg.Name)
	return nil
}

// Declared reports whether name was declared.
func (r *Registry) Declared(name string) bool {
	_, ok := r.decls[name]
	return ok
}

// Arguments returns the declarations in declaration order.
func (r *Registry) Arguments() []Argument {
	out := make([]Argument, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.decls[name])
	}
	return out
}

// Resolve returns the final value of an argument: the override if the caller
// supplied one, otherwise the evaluated default. Evaluated defaults are cached
// so repeated resolution never re-runs a command substitution.
func (r *Registry) Resolve(ctx context.Context, name string) (string, error) {
	decl, ok := r.decls[name]
	if !ok {
		return "", &UnknownArgumentError{Name: name, Declared: slices.Clone(r.order)}
	}

	if val, ok := r.overrides[name]; ok {
		if err := checkChoice(decl, val); err != nil {
			return "", err
		}
		return val, nil
	}

	if val, ok := r.cache[name]; ok {
		return val, nil
	}

	if i := slices.Index(r.resolving, name); i >= 0 {
		cycle := append(slices.Clone(r.resolving[i:]), name)
		return "", &CircularReferenceError{Cycle: cycle}
	}

	if decl.Default == nil {
		return "", fmt.Errorf("%w: argument %q has no default and no value was given", ErrMissingArgumentValue, name)
	}

	r.resolving = append(r.resolving, name)
	defer func() { r.resolving = r.resolving[:len(r.resolving)-1] }()

	ctxlog.FromContext(ctx).Debug("Evaluating argument default.", "argument", name, "default", decl.Default.String())
	val, err := decl.Default.Evaluate(ctx, &r.env)
	if err != nil {
		return "", fmt.Errorf("resolving argument %q: %w", name, err)
	}
	if err := checkChoice(decl, val); err != nil {
		return "", err
	}

	r.cache[name] = val
	return val, nil
}

// ValidateOverrides checks that every override targets a declared argument
// and resolves each of them, so a typo fails before anything starts.
func (r *Registry) ValidateOverrides(ctx context.Context) error {
	names := make([]string, 0, len(r.overrides))
	for name := range r.overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !r.Declared(name) {
			return &UnknownArgumentError{Name: name, Declared: slices.Clone(r.order)}
		}
		if _, err := r.Resolve(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func checkChoice(decl Argument, val string) error {
	if len(decl.Choices) == 0 || slices.Contains(decl.Choices, val) {
		return nil
	}
	return fmt.Errorf("%w: argument %q got %q, expected one of %v", ErrInvalidChoice, decl.Name, val, decl.Choices)
}
