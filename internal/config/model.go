package config

import (
	"fmt"

	"github.com/specialistvlad/launchgrid/internal/arguments"
	"github.com/specialistvlad/launchgrid/internal/unit"
)

// Description is the format-agnostic launch description: the declared
// arguments and the units to start, both in declaration order.
type Description struct {
	Arguments []arguments.Argument
	Units     []*unit.Unit
	// Sources lists the files the description was read from.
	Sources []string
}

// Validate checks that argument names and unit labels are unique and every
// unit is well formed.
func (d *Description) Validate() error {
	args := make(map[string]struct{}, len(d.Arguments))
	for _, arg := range d.Arguments {
		if _, ok := args[arg.Name]; ok {
			return fmt.Errorf("%w: %q is declared more than once", arguments.ErrDuplicateArgument, arg.Name)
		}
		args[arg.Name] = struct{}{}
	}

	labels := make(map[string]struct{}, len(d.Units))
	for _, u := range d.Units {
		if _, ok := labels[u.Label]; ok {
			return fmt.Errorf("unit label %q is used more than once", u.Label)
		}
		labels[u.Label] = struct{}{}
		if err := u.Validate(); err != nil {
			return err
		}
	}
	return nil
}
