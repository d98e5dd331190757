package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/launchgrid/internal/params"
	"github.com/specialistvlad/launchgrid/internal/schema"
	"github.com/specialistvlad/launchgrid/internal/subst"
	"github.com/specialistvlad/launchgrid/internal/unit"
)

// translateNode converts a decoded node block into a launch unit.
func (t *translator) translateNode(ctx context.Context, label string, n *schema.Node) (*unit.Unit, hcl.Diagnostics) {
	u := &unit.Unit{Kind: unit.KindNode, Label: label, Output: unit.OutputPolicy(n.Output)}
	var diags hcl.Diagnostics

	optional := func(expr hcl.Expression, attr string) subst.Expression {
		if !isExprDefined(ctx, expr, attr) {
			return nil
		}
		x, d := t.translate(expr)
		diags = append(diags, d...)
		return x
	}

	u.Package = optional(n.Package, "package")
	u.Executable = optional(n.Executable, "executable")
	u.Name = optional(n.Name, "name")
	u.Namespace = optional(n.Namespace, "namespace")

	if isExprDefined(ctx, n.Arguments, "arguments") {
		args, d := t.listAttr(n.Arguments, "arguments")
		diags = append(diags, d...)
		u.Arguments = args
	}
	if isExprDefined(ctx, n.ParameterFiles, "parameter_files") {
		files, d := t.listAttr(n.ParameterFiles, "parameter_files")
		diags = append(diags, d...)
		u.Parameters.Files = files
	}
	if isExprDefined(ctx, n.Parameters, "parameters") {
		inline, d := t.params(n.Parameters, "parameters", true)
		diags = append(diags, d...)
		u.Parameters.Inline = inline
	}
	if isExprDefined(ctx, n.Remappings, "remappings") {
		remaps, d := t.params(n.Remappings, "remappings", false)
		diags = append(diags, d...)
		for _, r := range remaps {
			u.Remappings = append(u.Remappings, unit.Remap{From: subst.Literal(r.Name), To: r.Value})
		}
	}
	if isExprDefined(ctx, n.Env, "env") {
		env, d := t.params(n.Env, "env", false)
		diags = append(diags, d...)
		u.Env = env
	}
	return u, diags
}

// translateProcess converts a decoded process block into a launch unit.
func (t *translator) translateProcess(ctx context.Context, label string, p *schema.Process) (*unit.Unit, hcl.Diagnostics) {
	u := &unit.Unit{Kind: unit.KindProcess, Label: label, Output: unit.OutputPolicy(p.Output)}

	cmd, diags := t.listAttr(p.Cmd, "cmd")
	u.Cmd = cmd
	if len(cmd) == 0 && !diags.HasErrors() {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid cmd",
			Detail:   "A process needs at least the executable in cmd.",
			Subject:  p.Cmd.Range().Ptr(),
		})
	}

	if isExprDefined(ctx, p.Env, "env") {
		env, d := t.params(p.Env, "env", false)
		diags = append(diags, d...)
		u.Env = env
	}
	return u, diags
}

// params translates a map attribute into ordered name/value pairs.
func (t *translator) params(expr hcl.Expression, attr string, flatten bool) ([]params.Param, hcl.Diagnostics) {
	entries, diags := t.mapAttr(expr, attr, flatten)
	out := make([]params.Param, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.key]; dup {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate key",
				Detail:   fmt.Sprintf("The key %q appears more than once in %q.", e.key, attr),
				Subject:  e.rng.Ptr(),
			})
			continue
		}
		seen[e.key] = struct{}{}
		val, d := t.translate(e.value)
		diags = append(diags, d...)
		out = append(out, params.Param{Name: e.key, Value: val})
	}
	return out, diags
}
