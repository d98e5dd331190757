package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/launchgrid/internal/arguments"
	"github.com/specialistvlad/launchgrid/internal/config"
	"github.com/specialistvlad/launchgrid/internal/ctxlog"
	"github.com/specialistvlad/launchgrid/internal/fsutil"
	"github.com/specialistvlad/launchgrid/internal/schema"
	"github.com/specialistvlad/launchgrid/internal/unit"
)

// FileExtension is the extension of launch files.
const FileExtension = ".hcl"

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL launch file loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// argRef is an `arg.<name>` reference found in a launch file.
type argRef struct {
	name string
	rng  hcl.Range
}

// Load reads every launch file named by paths, in order, and merges their
// declarations into one description. Directories contribute their .hcl files
// in lexical order.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Description, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.CollectFiles(paths, FileExtension)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	d := &decoder{
		translator: &translator{parser: parser},
		desc:       &config.Description{},
		argRanges:  make(map[string]hcl.Range),
		unitRanges: make(map[string]hcl.Range),
	}

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		if diags := d.decodeFile(ctx, hclFile); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		d.desc.Sources = append(d.desc.Sources, file)
	}

	for _, ref := range d.refs {
		if _, ok := d.argRanges[ref.name]; !ok {
			logger.Warn("Launch file references an undeclared argument.", "argument", ref.name, "range", ref.rng.String())
		}
	}

	if err := d.desc.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("HCL loading complete.", "arguments", len(d.desc.Arguments), "units", len(d.desc.Units))
	return d.desc, nil
}

// decoder accumulates the description across files.
type decoder struct {
	*translator
	desc       *config.Description
	argRanges  map[string]hcl.Range
	unitRanges map[string]hcl.Range
	refs       []argRef
}

func (d *decoder) decodeFile(ctx context.Context, file *hcl.File) hcl.Diagnostics {
	content, diags := file.Body.Content(schema.LaunchFile)
	if diags.HasErrors() {
		return diags
	}

	for _, block := range content.Blocks {
		switch block.Type {
		case schema.BlockArgument:
			diags = append(diags, d.decodeArgument(ctx, block)...)
		case schema.BlockNode, schema.BlockProcess:
			diags = append(diags, d.decodeUnit(ctx, block)...)
		}
	}
	return diags
}

func (d *decoder) decodeArgument(ctx context.Context, block *hcl.Block) hcl.Diagnostics {
	name := block.Labels[0]
	if prev, ok := d.argRanges[name]; ok {
		return duplicateBlock(block, "argument", name, prev)
	}

	var body schema.Argument
	diags := gohcl.DecodeBody(block.Body, nil, &body)
	if diags.HasErrors() {
		return diags
	}
	diags = append(diags, d.inspect(block, &body)...)
	if diags.HasErrors() {
		return diags
	}

	arg := arguments.Argument{Name: name, Description: body.Description, Choices: body.Choices}
	if isExprDefined(ctx, body.Default, "default") {
		def, exprDiags := d.translate(body.Default)
		diags = append(diags, exprDiags...)
		arg.Default = def
	}
	if diags.HasErrors() {
		return diags
	}

	d.argRanges[name] = block.DefRange
	d.desc.Arguments = append(d.desc.Arguments, arg)
	return diags
}

func (d *decoder) decodeUnit(ctx context.Context, block *hcl.Block) hcl.Diagnostics {
	label := block.Labels[0]
	if prev, ok := d.unitRanges[label]; ok {
		return duplicateBlock(block, "unit", label, prev)
	}

	var (
		u     *unit.Unit
		diags hcl.Diagnostics
	)
	if block.Type == schema.BlockNode {
		var body schema.Node
		if diags = gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
			return diags
		}
		if diags = append(diags, d.inspect(block, &body)...); diags.HasErrors() {
			return diags
		}
		u, diags = d.translateNode(ctx, label, &body)
	} else {
		var body schema.Process
		if diags = gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
			return diags
		}
		if diags = append(diags, d.inspect(block, &body)...); diags.HasErrors() {
			return diags
		}
		u, diags = d.translateProcess(ctx, label, &body)
	}
	if diags.HasErrors() {
		return diags
	}

	output, err := unit.ParseOutput(string(u.Output))
	if err != nil {
		return append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid output policy",
			Detail:   err.Error(),
			Subject:  block.DefRange.Ptr(),
		})
	}
	u.Output = output

	d.unitRanges[label] = block.DefRange
	d.desc.Units = append(d.desc.Units, u)
	return diags
}

// inspect checks the functions a block calls and records its argument
// references.
func (d *decoder) inspect(block *hcl.Block, body schema.Expressioner) hcl.Diagnostics {
	var diags hcl.Diagnostics
	traversals, functions := extractReferencesAndFunctions(body.Expressions()...)

	for _, fn := range functions {
		if _, ok := supportedFunctions[fn]; !ok {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Call to unknown function",
				Detail:   fmt.Sprintf("There is no function named %q. Supported functions are: %s.", fn, supportedFunctionList()),
				Subject:  block.DefRange.Ptr(),
			})
		}
	}

	for _, traversal := range traversals {
		if name, ok := argName(traversal); ok {
			d.refs = append(d.refs, argRef{name: name, rng: traversal.SourceRange()})
		}
	}
	return diags
}

func duplicateBlock(block *hcl.Block, kind, name string, prev hcl.Range) hcl.Diagnostics {
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  fmt.Sprintf("Duplicate %s %q", kind, name),
		Detail:   fmt.Sprintf("A %s named %q was already declared at %s. Names must be unique.", kind, name, prev.String()),
		Subject:  block.DefRange.Ptr(),
	}}
}
