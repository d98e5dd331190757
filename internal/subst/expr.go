// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package subst

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Expression is a lazily evaluated string value.
type Expression interface {
	// Evaluate produces the concrete value of the expression.
	Evaluate(ctx context.Context, env *Env) (string, error)
	// String renders the expression in launch file syntax.
	String() string
}

// ArgResolver resolves launch arguments referenced by ArgRef.
type ArgResolver interface {
	Declared(name string) bool
	Resolve(ctx context.Context, name string) (string, error)
}

// PackageLocator finds installed ROS 2 packages.
type PackageLocator interface {
	Share(pkg string) (string, error)
	Executable(pkg, executable string) (string, error)
}

// Env holds the collaborators expressions are evaluated against.
type Env struct {
	Args     ArgResolver
	Runner   CommandRunner
	Packages PackageLocator
	// LookupEnv defaults to os.LookupEnv when nil.
	LookupEnv func(string) (string, bool)
}

func (e *Env) lookupEnv(name string) (string, bool) {
	if e == nil || e.LookupEnv == nil {
		return os.LookupEnv(name)
	}
	return e.LookupEnv(name)
}

// EvaluateAll evaluates exprs in order and stops at the first error.
func EvaluateAll(ctx context.Context, env *Env, exprs []Expression) ([]string, error) {
	out := make([]string, 0, len(exprs))
	for _, expr := range exprs {
		val, err := expr.Evaluate(ctx, env)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

// Literals wraps plain strings as Literal expressions.
func Literals(values ...string) []Expression {
	out := make([]Expression, len(values))
	for i, v := range values {
		out[i] = Literal(v)
	}
	return out
}

func joinStrings(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, expr := range exprs {
		parts[i] = expr.String()
	}
	return strings.Join(parts, ", ")
}

// Literal is a fixed value.
type Literal string

func (l Literal) Evaluate(context.Context, *Env) (string, error) {
	return string(l), nil
}

func (l Literal) String() string {
	return strconv.Quote(string(l))
}

// PathJoin joins its evaluated parts with the platform path separator.
type PathJoin struct {
	Parts []Expression
}

func (p PathJoin) Evaluate(ctx context.Context, env *Env) (string, error) {
	parts, err := EvaluateAll(ctx, env, p.Parts)
	if err != nil {
		return "", err
	}
	return filepath.Join(parts...), nil
}

func (p PathJoin) String() string {
	return "path_join(" + joinStrings(p.Parts) + ")"
}

// Concat concatenates its evaluated parts.
type Concat struct {
	Parts []Expression
}

func (c Concat) Evaluate(ctx context.Context, env *Env) (string, error) {
	parts, err := EvaluateAll(ctx, env, c.Parts)
	if err != nil {
		return "", err
	}
	return strings.Join(parts, ""), nil
}

func (c Concat) String() string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, part := range c.Parts {
		if lit, ok := part.(Literal); ok {
			quoted := strconv.Quote(string(lit))
			sb.WriteString(quoted[1 : len(quoted)-1])
			continue
		}
		sb.WriteString("${" + part.String() + "}")
	}
	sb.WriteByte('"')
	return sb.String()
}

// Command runs an external command synchronously; its value is the command's
// standard output, unmodified.
type Command struct {
	Argv []Expression
}

func (c Command) Evaluate(ctx context.Context, env *Env) (string, error) {
	argv, err := EvaluateAll(ctx, env, c.Argv)
	if err != nil {
		return "", err
	}
	if len(argv) == 0 || argv[0] == "" {
		return "", &CommandError{Argv: argv, Err: errors.New("empty command")}
	}
	if env == nil || env.Runner == nil {
		return "", &CommandError{Argv: argv, Err: errors.New("no command runner configured")}
	}

	stdout, stderr, exitCode, err := env.Runner.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		return "", &CommandError{Argv: argv, ExitCode: exitCode, Stderr: string(stderr), Err: err}
	}
	return string(stdout), nil
}

func (c Command) String() string {
	return "command(" + joinStrings(c.Argv) + ")"
}

// ArgRef reads the value of another launch argument.
type ArgRef struct {
	Name string
}

func (a ArgRef) Evaluate(ctx context.Context, env *Env) (string, error) {
	if env == nil || env.Args == nil || !env.Args.Declared(a.Name) {
		return "", &UndefinedReferenceError{Name: a.Name}
	}
	return env.Args.Resolve(ctx, a.Name)
}

func (a ArgRef) String() string {
	return "arg." + a.Name
}

// EnvVar reads an environment variable of the launching host.
type EnvVar struct {
	Name    string
	Default Expression
}

func (e EnvVar) Evaluate(ctx context.Context, env *Env) (string, error) {
	if val, ok := env.lookupEnv(e.Name); ok {
		return val, nil
	}
	if e.Default != nil {
		return e.Default.Evaluate(ctx, env)
	}
	return "", fmt.Errorf("%w: %s", ErrEnvironmentVariableNotSet, e.Name)
}

func (e EnvVar) String() string {
	if e.Default == nil {
		return "env(" + strconv.Quote(e.Name) + ")"
	}
	return "env(" + strconv.Quote(e.Name) + ", " + e.Default.String() + ")"
}

// PackageShare resolves to the share directory of an installed package.
type PackageShare struct {
	Package Expression
}

func (p PackageShare) Evaluate(ctx context.Context, env *Env) (string, error) {
	pkg, err := p.Package.Evaluate(ctx, env)
	if err != nil {
		return "", err
	}
	if env == nil || env.Packages == nil {
		return "", fmt.Errorf("cannot locate package %q: no package index configured", pkg)
	}
	return env.Packages.Share(pkg)
}

func (p PackageShare) String() string {
	return "package_share(" + p.Package.String() + ")"
}
