package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/specialistvlad/launchgrid/internal/config"
	"github.com/specialistvlad/launchgrid/internal/orchestrator"
)

// showArgs prints the declared arguments in the layout of
// `ros2 launch --show-args`.
func (a *App) showArgs(desc *config.Description) error {
	w := a.outW
	if len(desc.Arguments) == 0 {
		_, err := fmt.Fprintln(w, "No arguments.")
		return err
	}

	fmt.Fprintln(w, "Arguments (pass arguments as '<name>:=<value>'):")
	for _, arg := range desc.Arguments {
		fmt.Fprintf(w, "\n    '%s':\n", arg.Name)
		description := arg.Description
		if description == "" {
			description = "no description given"
		}
		fmt.Fprintf(w, "        %s\n", description)
		if len(arg.Choices) > 0 {
			fmt.Fprintf(w, "        Valid choices are: [%s]\n", strings.Join(arg.Choices, ", "))
		}
		if arg.Default == nil {
			fmt.Fprintln(w, "        (no default, a value is required)")
		} else {
			fmt.Fprintf(w, "        (default: %s)\n", arg.Default.String())
		}
	}
	return nil
}

// dryRun resolves every argument and materializes every unit, then prints
// the commands that a launch would start.
func (a *App) dryRun(ctx context.Context, desc *config.Description) error {
	o := orchestrator.New(nil, a.argumentOptions())
	cmds, err := o.Plan(ctx, desc, a.config.Overrides)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.outW, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tUNIT\tKIND\tOUTPUT\tCOMMAND")
	for i, cmd := range cmds {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, cmd.Label, cmd.Kind, cmd.Output, shellJoin(cmd.Argv()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, cmd := range cmds {
		if len(cmd.Env) == 0 {
			continue
		}
		fmt.Fprintf(a.outW, "\n%s environment:\n", cmd.Label)
		for _, kv := range cmd.Env {
			fmt.Fprintf(a.outW, "    %s\n", kv)
		}
	}
	return nil
}

func shellJoin(argv []string) string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		if arg == "" || strings.ContainsAny(arg, " \t\n\"'\\$") {
			out[i] = strconv.Quote(arg)
		} else {
			out[i] = arg
		}
	}
	return strings.Join(out, " ")
}
