// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package ament locates installed ROS 2 packages through the ament resource
// index found under each prefix of AMENT_PREFIX_PATH.
package ament

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvPrefixPath is the environment variable listing install prefixes.
const EnvPrefixPath = "AMENT_PREFIX_PATH"

var (
	ErrPackageNotFound    = errors.New("package not found")
	ErrExecutableNotFound = errors.New("executable not found")
)

// Index searches install prefixes in order; the first prefix that registers a
// package wins.
type Index struct {
	Prefixes []string
}

// FromEnv builds an Index from AMENT_PREFIX_PATH.
func FromEnv() *Index {
	return New(os.Getenv(EnvPrefixPath))
}

// New builds an Index from a list of prefixes separated by the OS path list
// separator. Empty entries are skipped.
func New(prefixPath string) *Index {
	idx := &Index{}
	for _, p := range filepath.SplitList(prefixPath) {
		if p = strings.TrimSpace(p); p != "" {
			idx.Prefixes = append(idx.Prefixes, p)
		}
	}
	return idx
}

func markerPath(prefix, pkg string) string {
	return filepath.Join(prefix, "share", "ament_index", "resource_index", "packages", pkg)
}

// Prefix returns the install prefix that registers pkg.
func (idx *Index) Prefix(pkg string) (string, error) {
	if pkg == "" {
		return "", fmt.Errorf("%w: empty package name", ErrPackageNotFound)
	}
	for _, prefix := range idx.Prefixes {
		if _, err := os.Stat(markerPath(prefix, pkg)); err == nil {
			return prefix, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not registered under %s=%s",
		ErrPackageNotFound, pkg, EnvPrefixPath, strings.Join(idx.Prefixes, string(os.PathListSeparator)))
}

// Share returns <prefix>/share/<pkg>.
func (idx *Index) Share(pkg string) (string, error) {
	prefix, err := idx.Prefix(pkg)
	if err != nil {
		return "", err
	}
	return filepath.Join(prefix, "share", pkg), nil
}

// Executable returns <prefix>/lib/<pkg>/<executable>, which must be a regular
// executable file.
func (idx *Index) Executable(pkg, executable string) (string, error) {
	prefix, err := idx.Prefix(pkg)
	if err != nil {
		return "", err
	}
	path := filepath.Join(prefix, "lib", pkg, executable)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("%w: %q in package %q (looked at %s)", ErrExecutableNotFound, executable, pkg, path)
	}
	return path, nil
}
