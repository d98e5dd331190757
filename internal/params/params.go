// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package params materializes layered node parameters: YAML parameter files
// overlaid by inline values, flattened into a single table.
package params

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/specialistvlad/launchgrid/internal/ctxlog"
	"github.com/specialistvlad/launchgrid/internal/subst"
)

var ErrParameterFileNotFound = errors.New("parameter file not found")

// ParameterFileNotFoundError names a parameter file that does not exist at
// materialization time.
type ParameterFileNotFoundError struct {
	Path string
}

func (e *ParameterFileNotFoundError) Error() string {
	return fmt.Sprintf("parameter file not found: %s", e.Path)
}

func (e *ParameterFileNotFoundError) Is(target error) bool {
	return target == ErrParameterFileNotFound
}

// Param is a single inline parameter.
type Param struct {
	Name  string
	Value subst.Expression
}

// Set is the ordered list of parameter sources of one unit. Later layers win:
// files in order, then inline values in order.
type Set struct {
	Files  []subst.Expression
	Inline []Param
}

// Empty reports whether the set has no sources.
func (s Set) Empty() bool {
	return len(s.Files) == 0 && len(s.Inline) == 0
}

// Table is a flat, resolved parameter table.
type Table map[string]string

// Keys returns the parameter names in sorted order.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolve evaluates every layer of the set for the node called nodeName.
// nodeName selects the node section of ROS-style parameter files.
func (s Set) Resolve(ctx context.Context, env *subst.Env, nodeName string) (Table, error) {
	logger := ctxlog.FromContext(ctx)
	table := make(Table)

	for _, fileExpr := range s.Files {
		path, err := fileExpr.Evaluate(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("resolving parameter file %s: %w", fileExpr, err)
		}
		layer, err := LoadFile(path, nodeName)
		if err != nil {
			return nil, err
		}
		logger.Debug("Loaded parameter file.", "path", path, "node", nodeName, "count", len(layer))
		for k, v := range layer {
			table[k] = v
		}
	}

	for _, p := range s.Inline {
		val, err := p.Value.Evaluate(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("resolving parameter %q: %w", p.Name, err)
		}
		table[p.Name] = val
	}
	return table, nil
}

// LoadFile reads one YAML parameter file.
func LoadFile(path, nodeName string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ParameterFileNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("reading parameter file %s: %w", path, err)
	}
	table, err := Parse(data, nodeName)
	if err != nil {
		return nil, fmt.Errorf("parsing parameter file %s: %w", path, err)
	}
	return table, nil
}
