// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package unit describes the launch units of a launch description and turns
// them into concrete commands.
package unit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/specialistvlad/launchgrid/internal/params"
	"github.com/specialistvlad/launchgrid/internal/subst"
)

// Kind distinguishes ROS nodes from plain processes.
type Kind string

const (
	KindNode    Kind = "node"
	KindProcess Kind = "process"
)

// OutputPolicy controls where a unit's stdout and stderr go.
type OutputPolicy string

const (
	OutputScreen OutputPolicy = "screen"
	OutputLog    OutputPolicy = "log"
	OutputBoth   OutputPolicy = "both"
)

// DefaultOutput is used when a unit does not set one.
const DefaultOutput = OutputLog

// ParseOutput validates an output policy name. The empty string yields
// DefaultOutput.
func ParseOutput(s string) (OutputPolicy, error) {
	switch p := OutputPolicy(s); p {
	case "":
		return DefaultOutput, nil
	case OutputScreen, OutputLog, OutputBoth:
		return p, nil
	default:
		return "", fmt.Errorf("invalid output policy %q: must be one of screen, log, both", s)
	}
}

// Remap renames a topic or service for a node.
type Remap struct {
	From subst.Expression
	To   subst.Expression
}

// Unit is one node or process to start. Units are built while loading the
// launch description and are not modified afterwards.
type Unit struct {
	Kind  Kind
	Label string

	// Package and Executable identify a node.
	Package    subst.Expression
	Executable subst.Expression
	// Cmd is the argv of a process.
	Cmd []subst.Expression

	Name       subst.Expression
	Namespace  subst.Expression
	Arguments  []subst.Expression
	Parameters params.Set
	Remappings []Remap
	Env        []params.Param
	Output     OutputPolicy
}

// Command is a fully resolved unit, ready to start.
type Command struct {
	Label string
	Kind  Kind
	// Name is the node name, or the label for processes.
	Name string
	// Path is the executable. For processes it may be a bare name that is
	// looked up on PATH when started.
	Path   string
	Args   []string
	Params params.Table
	// Env holds extra "KEY=value" entries added to the launcher environment.
	Env    []string
	Output OutputPolicy
}

// Argv returns the full command line.
func (c *Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

// Validate checks the structural requirements of a unit.
func (u *Unit) Validate() error {
	if u.Label == "" {
		return errors.New("unit has no label")
	}
	switch u.Kind {
	case KindNode:
		if u.Package == nil || u.Executable == nil {
			return fmt.Errorf("node %q needs both a package and an executable", u.Label)
		}
		if len(u.Cmd) > 0 {
			return fmt.Errorf("node %q cannot set cmd", u.Label)
		}
	case KindProcess:
		if len(u.Cmd) == 0 {
			return fmt.Errorf("process %q needs a non-empty cmd", u.Label)
		}
		if !u.Parameters.Empty() || len(u.Remappings) > 0 || u.Name != nil || u.Namespace != nil {
			return fmt.Errorf("process %q cannot set node name, namespace, parameters or remappings", u.Label)
		}
	default:
		return fmt.Errorf("unit %q has unknown kind %q", u.Label, u.Kind)
	}
	if _, err := ParseOutput(string(u.Output)); err != nil {
		return fmt.Errorf("unit %q: %w", u.Label, err)
	}
	return nil
}

// Materialize evaluates every expression of the unit against env. With an
// unchanged argument registry the result is the same on every call.
func (u *Unit) Materialize(ctx context.Context, env *subst.Env) (*Command, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	output, _ := ParseOutput(string(u.Output))

	cmd := &Command{Label: u.Label, Kind: u.Kind, Output: output}

	extraEnv, err := evaluateEnv(ctx, env, u.Env)
	if err != nil {
		return nil, err
	}
	cmd.Env = extraEnv

	if u.Kind == KindProcess {
		argv, err := subst.EvaluateAll(ctx, env, u.Cmd)
		if err != nil {
			return nil, fmt.Errorf("resolving cmd: %w", err)
		}
		if argv[0] == "" {
			return nil, errors.New("cmd resolved to an empty executable")
		}
		cmd.Name = u.Label
		cmd.Path = argv[0]
		cmd.Args = argv[1:]
		return cmd, nil
	}

	return u.materializeNode(ctx, env, cmd)
}

func (u *Unit) materializeNode(ctx context.Context, env *subst.Env, cmd *Command) (*Command, error) {
	pkg, err := u.Package.Evaluate(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("resolving package: %w", err)
	}
	exe, err := u.Executable.Evaluate(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("resolving executable: %w", err)
	}
	if env == nil || env.Packages == nil {
		return nil, fmt.Errorf("cannot locate %s/%s: no package index configured", pkg, exe)
	}
	path, err := env.Packages.Executable(pkg, exe)
	if err != nil {
		return nil, err
	}
	cmd.Path = path

	name, err := evaluateOptional(ctx, env, u.Name)
	if err != nil {
		return nil, fmt.Errorf("resolving name: %w", err)
	}
	namespace, err := evaluateOptional(ctx, env, u.Namespace)
	if err != nil {
		return nil, fmt.Errorf("resolving namespace: %w", err)
	}
	cmd.Name = name
	if cmd.Name == "" {
		cmd.Name = filepath.Base(exe)
	}

	args, err := subst.EvaluateAll(ctx, env, u.Arguments)
	if err != nil {
		return nil, fmt.Errorf("resolving arguments: %w", err)
	}

	table, err := u.Parameters.Resolve(ctx, env, cmd.Name)
	if err != nil {
		return nil, err
	}
	cmd.Params = table

	var rosArgs []string
	if name != "" {
		rosArgs = append(rosArgs, "-r", "__node:="+name)
	}
	if namespace != "" {
		rosArgs = append(rosArgs, "-r", "__ns:="+namespace)
	}
	for _, remap := range u.Remappings {
		from, err := remap.From.Evaluate(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("resolving remapping: %w", err)
		}
		to, err := remap.To.Evaluate(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("resolving remapping %q: %w", from, err)
		}
		rosArgs = append(rosArgs, "-r", from+":="+to)
	}
	for _, key := range table.Keys() {
		rosArgs = append(rosArgs, "-p", key+":="+table[key])
	}

	cmd.Args = args
	if len(rosArgs) > 0 {
		cmd.Args = append(append(cmd.Args, "--ros-args"), rosArgs...)
	}
	return cmd, nil
}

func evaluateOptional(ctx context.Context, env *subst.Env, expr subst.Expression) (string, error) {
	if expr == nil {
		return "", nil
	}
	return expr.Evaluate(ctx, env)
}

func evaluateEnv(ctx context.Context, env *subst.Env, vars []params.Param) ([]string, error) {
	if len(vars) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		val, err := v.Value.Evaluate(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("resolving environment variable %s: %w", v.Name, err)
		}
		out = append(out, v.Name+"="+val)
	}
	return out, nil
}
