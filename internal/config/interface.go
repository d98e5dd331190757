package config

import (
	"context"
)

// Loader is the interface for a format-specific launch file loader.
type Loader interface {
	// Load reads launch files from the given paths (files or directories)
	// and translates them into the format-agnostic description.
	Load(ctx context.Context, paths ...string) (*Description, error)
}
