package hcl

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/launchgrid/internal/ctxlog"
	"github.com/specialistvlad/launchgrid/internal/params"
	"github.com/specialistvlad/launchgrid/internal/subst"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// translator converts HCL expressions into substitution trees.
type translator struct {
	parser *hclparse.Parser
}

// isExprDefined checks if an HCL expression was actually present in the source
// code. The HCL decoder populates omitted optional fields with a static null
// expression that has a zero-width range.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	if _, ok := expr.(hclsyntax.Expression); ok {
		return true
	}
	rng := expr.Range()
	isDefined := rng.End.Byte > rng.Start.Byte
	ctxlog.FromContext(ctx).Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", rng.String(),
		"is_defined", isDefined,
	)
	return isDefined
}

func unwrap(expr hcl.Expression) hcl.Expression {
	for {
		switch e := expr.(type) {
		case *hclsyntax.ParenthesesExpr:
			expr = e.Expression
		case *hclsyntax.TemplateWrapExpr:
			expr = e.Wrapped
		default:
			return expr
		}
	}
}

// translate converts a single value expression.
func (t *translator) translate(expr hcl.Expression) (subst.Expression, hcl.Diagnostics) {
	expr = unwrap(expr)

	switch e := expr.(type) {
	case *hclsyntax.TemplateExpr:
		if e.IsStringLiteral() {
			return t.static(e)
		}
		var diags hcl.Diagnostics
		parts := make([]subst.Expression, 0, len(e.Parts))
		for _, part := range e.Parts {
			p, partDiags := t.translate(part)
			diags = append(diags, partDiags...)
			parts = append(parts, p)
		}
		return subst.Concat{Parts: parts}, diags

	case *hclsyntax.ScopeTraversalExpr:
		name, ok := argName(e.Traversal)
		if !ok {
			return nil, hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  "Unsupported reference",
				Detail:   fmt.Sprintf("Launch files can only reference arguments as %s.<name>, got %s.", argScope, TraversalKey(e.Traversal)),
				Subject:  e.Range().Ptr(),
			}}
		}
		return subst.ArgRef{Name: name}, nil

	case *hclsyntax.FunctionCallExpr:
		return t.call(e)

	case *hclsyntax.TupleConsExpr:
		return t.tuple(e)

	case *hclsyntax.ObjectConsExpr:
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unsupported value",
			Detail:   "Maps are only allowed for parameters, remappings and env.",
			Subject:  e.Range().Ptr(),
		}}
	}

	if len(expr.Variables()) == 0 {
		return t.static(expr)
	}
	return nil, hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  "Unsupported expression",
		Detail:   "Only literals, string templates, argument references and the functions " + supportedFunctionList() + " can reference arguments.",
		Subject:  expr.Range().Ptr(),
	}}
}

// tuple renders a list used as a single value, e.g. a list parameter.
func (t *translator) tuple(e *hclsyntax.TupleConsExpr) (subst.Expression, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	items := make([]subst.Expression, 0, len(e.Exprs))
	allLiteral := true
	for _, item := range e.Exprs {
		x, itemDiags := t.translate(item)
		diags = append(diags, itemDiags...)
		lit, ok := x.(subst.Literal)
		switch {
		case !ok:
			allLiteral = false
		case isStringLiteral(item):
			x = subst.Literal(params.FlowString(string(lit)))
		}
		items = append(items, x)
	}
	if diags.HasErrors() {
		return nil, diags
	}

	if allLiteral {
		vals := make([]string, len(items))
		for i, item := range items {
			vals[i] = string(item.(subst.Literal))
		}
		return subst.Literal(params.FlowList(vals)), diags
	}

	parts := []subst.Expression{subst.Literal("[")}
	for i, item := range items {
		if i > 0 {
			parts = append(parts, subst.Literal(", "))
		}
		parts = append(parts, item)
	}
	parts = append(parts, subst.Literal("]"))
	return subst.Concat{Parts: parts}, diags
}

// isStringLiteral reports whether expr is a string constant. Its list item
// text must be quoted where YAML would read it as something else.
func isStringLiteral(expr hcl.Expression) bool {
	switch e := unwrap(expr).(type) {
	case *hclsyntax.TemplateExpr:
		return e.IsStringLiteral()
	case *hclsyntax.LiteralValueExpr:
		return e.Val.Type() == cty.String
	}
	return false
}

func (t *translator) call(e *hclsyntax.FunctionCallExpr) (subst.Expression, hcl.Diagnostics) {
	if e.ExpandFinal {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unsupported argument expansion",
			Detail:   "Function arguments cannot be expanded with \"...\".",
			Subject:  e.Range().Ptr(),
		}}
	}

	argExprs := e.Args
	// command(["xacro", arg.model]) is the same as command("xacro", arg.model).
	if e.Name == "command" && len(argExprs) == 1 {
		if tuple, ok := unwrap(argExprs[0]).(*hclsyntax.TupleConsExpr); ok {
			argExprs = tuple.Exprs
		}
	}

	args, diags := t.list(argExprs)
	if diags.HasErrors() {
		return nil, diags
	}

	arity := func(lo, hi int) hcl.Diagnostics {
		if len(args) >= lo && (hi < 0 || len(args) <= hi) {
			return nil
		}
		want := strconv.Itoa(lo)
		switch {
		case hi < 0:
			want = "at least " + want
		case hi != lo:
			want = fmt.Sprintf("%d or %d", lo, hi)
		}
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Wrong number of function arguments",
			Detail:   fmt.Sprintf("Function %q expects %s arguments, got %d.", e.Name, want, len(args)),
			Subject:  e.Range().Ptr(),
		}}
	}

	switch e.Name {
	case "path_join":
		if d := arity(1, -1); d.HasErrors() {
			return nil, d
		}
		return subst.PathJoin{Parts: args}, diags
	case "command":
		if d := arity(1, -1); d.HasErrors() {
			return nil, d
		}
		return subst.Command{Argv: args}, diags
	case "package_share":
		if d := arity(1, 1); d.HasErrors() {
			return nil, d
		}
		return subst.PackageShare{Package: args[0]}, diags
	case "env":
		if d := arity(1, 2); d.HasErrors() {
			return nil, d
		}
		name, ok := args[0].(subst.Literal)
		if !ok || name == "" {
			return nil, hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  "Invalid environment variable name",
				Detail:   "The first argument of env() must be a non-empty literal string.",
				Subject:  e.Args[0].Range().Ptr(),
			}}
		}
		ev := subst.EnvVar{Name: string(name)}
		if len(args) == 2 {
			ev.Default = args[1]
		}
		return ev, diags
	default:
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Call to unknown function",
			Detail:   fmt.Sprintf("There is no function named %q. Supported functions are: %s.", e.Name, supportedFunctionList()),
			Subject:  e.NameRange.Ptr(),
		}}
	}
}

func (t *translator) list(exprs []hclsyntax.Expression) ([]subst.Expression, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	out := make([]subst.Expression, 0, len(exprs))
	for _, expr := range exprs {
		x, d := t.translate(expr)
		diags = append(diags, d...)
		out = append(out, x)
	}
	return out, diags
}

// listAttr translates an attribute that must be a list, such as cmd.
func (t *translator) listAttr(expr hcl.Expression, attr string) ([]subst.Expression, hcl.Diagnostics) {
	tuple, ok := unwrap(expr).(*hclsyntax.TupleConsExpr)
	if !ok {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid " + attr,
			Detail:   fmt.Sprintf("The %q attribute must be a list, e.g. [\"a\", arg.b].", attr),
			Subject:  expr.Range().Ptr(),
		}}
	}
	return t.list(tuple.Exprs)
}

// entry is one key of a map attribute, in source order.
type entry struct {
	key   string
	value hcl.Expression
	rng   hcl.Range
}

// mapAttr reads an attribute that must be a map. With flatten set, nested
// maps are joined into dotted keys.
func (t *translator) mapAttr(expr hcl.Expression, attr string, flatten bool) ([]entry, hcl.Diagnostics) {
	obj, ok := unwrap(expr).(*hclsyntax.ObjectConsExpr)
	if !ok {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid " + attr,
			Detail:   fmt.Sprintf("The %q attribute must be a map, e.g. { key = \"value\" }.", attr),
			Subject:  expr.Range().Ptr(),
		}}
	}

	var (
		diags   hcl.Diagnostics
		entries []entry
	)
	for _, item := range obj.Items {
		keyVal, keyDiags := item.KeyExpr.Value(nil)
		if keyDiags.HasErrors() || keyVal.IsNull() || !keyVal.IsKnown() {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid map key",
				Detail:   fmt.Sprintf("Keys of %q must be literal names or strings.", attr),
				Subject:  item.KeyExpr.Range().Ptr(),
			})
			continue
		}
		keyStr, err := convert.Convert(keyVal, cty.String)
		if err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid map key",
				Detail:   err.Error(),
				Subject:  item.KeyExpr.Range().Ptr(),
			})
			continue
		}
		key := keyStr.AsString()

		if nested, ok := unwrap(item.ValueExpr).(*hclsyntax.ObjectConsExpr); ok && flatten {
			inner, innerDiags := t.mapAttr(nested, attr, true)
			diags = append(diags, innerDiags...)
			for _, in := range inner {
				in.key = key + "." + in.key
				entries = append(entries, in)
			}
			continue
		}
		entries = append(entries, entry{key: key, value: item.ValueExpr, rng: item.KeyExpr.Range()})
	}
	return entries, diags
}

// static evaluates an expression without variables. Numbers keep their
// source spelling so 30.0 is passed on as 30.0 rather than 30.
func (t *translator) static(expr hcl.Expression) (subst.Expression, hcl.Diagnostics) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	s, err := t.render(val, expr.Range())
	if err != nil {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid value",
			Detail:   err.Error(),
			Subject:  expr.Range().Ptr(),
		})
	}
	return subst.Literal(s), diags
}

func (t *translator) render(val cty.Value, rng hcl.Range) (string, error) {
	if val.IsNull() {
		return "", fmt.Errorf("null is not a valid value here")
	}
	if !val.IsWhollyKnown() {
		return "", fmt.Errorf("value is not known")
	}

	ty := val.Type()
	switch {
	case ty == cty.Number:
		if src := t.source(rng); src != "" {
			if _, err := strconv.ParseFloat(src, 64); err == nil {
				return src, nil
			}
		}
		fallthrough
	case ty.IsPrimitiveType():
		str, err := convert.Convert(val, cty.String)
		if err != nil {
			return "", err
		}
		return str.AsString(), nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		var items []string
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			s, err := t.render(elem, hcl.Range{})
			if err != nil {
				return "", err
			}
			if elem.Type() == cty.String {
				s = params.FlowString(s)
			}
			items = append(items, s)
		}
		return params.FlowList(items), nil
	default:
		return "", fmt.Errorf("values of type %s are not supported", ty.FriendlyName())
	}
}

// source returns the trimmed source text of rng, if the file is known.
func (t *translator) source(rng hcl.Range) string {
	if t.parser == nil || rng.Filename == "" {
		return ""
	}
	f, ok := t.parser.Files()[rng.Filename]
	if !ok || rng.End.Byte > len(f.Bytes) {
		return ""
	}
	return strings.TrimSpace(string(rng.SliceBytes(f.Bytes)))
}
