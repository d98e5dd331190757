package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// overridesFlag collects repeated -arg name=value flags.
type overridesFlag struct {
	values map[string]string
}

func (f *overridesFlag) String() string {
	if f == nil || len(f.values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + f.values[k]
	}
	return strings.Join(parts, ",")
}

func (f *overridesFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[name] = value
	return nil
}

// parseAssignment splits a positional `name:=value` launch argument.
func parseAssignment(s string) (string, string, bool) {
	name, value, ok := strings.Cut(s, ":=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", false
	}
	return name, value, true
}

type overridesFile struct {
	Arguments map[string]any `toml:"arguments"`
}

// loadOverridesFile reads launch argument values from the [arguments] table
// of a TOML file. Booleans and numbers are accepted and passed on in their
// TOML spelling.
func loadOverridesFile(path string) (map[string]string, error) {
	var raw overridesFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load overrides file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("load overrides file: unknown keys %s", strings.Join(keys, ", "))
	}

	out := make(map[string]string, len(raw.Arguments))
	for name, v := range raw.Arguments {
		switch val := v.(type) {
		case string:
			out[name] = val
		case bool, int64, float64:
			out[name] = fmt.Sprint(val)
		default:
			return nil, fmt.Errorf("load overrides file: argument %q must be a string, number or boolean, got %T", name, v)
		}
	}
	return out, nil
}
