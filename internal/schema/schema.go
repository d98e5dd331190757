// Package schema declares the HCL structure of launch files.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// Block types of a launch file.
const (
	BlockArgument = "argument"
	BlockNode     = "node"
	BlockProcess  = "process"
)

// LaunchFile is the top-level schema of a launch file. Blocks are read with
// hcl.Body.Content so their source order is kept; the order of units is
// their start order.
var LaunchFile = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: BlockArgument, LabelNames: []string{"name"}},
		{Type: BlockNode, LabelNames: []string{"label"}},
		{Type: BlockProcess, LabelNames: []string{"label"}},
	},
}

// Expressioner is implemented by block bodies that hold HCL expressions, so
// their references and function calls can be inspected before translation.
type Expressioner interface {
	Expressions() []hcl.Expression
}

// Argument is the body of an `argument "<name>"` block.
type Argument struct {
	Default     hcl.Expression `hcl:"default,optional"`
	Description string         `hcl:"description,optional"`
	Choices     []string       `hcl:"choices,optional"`
}

func (a *Argument) Expressions() []hcl.Expression {
	return []hcl.Expression{a.Default}
}

// Node is the body of a `node "<label>"` block: an executable of a ROS 2
// package.
type Node struct {
	Package        hcl.Expression `hcl:"package"`
	Executable     hcl.Expression `hcl:"executable"`
	Name           hcl.Expression `hcl:"name,optional"`
	Namespace      hcl.Expression `hcl:"namespace,optional"`
	Arguments      hcl.Expression `hcl:"arguments,optional"`
	ParameterFiles hcl.Expression `hcl:"parameter_files,optional"`
	Parameters     hcl.Expression `hcl:"parameters,optional"`
	Remappings     hcl.Expression `hcl:"remappings,optional"`
	Env            hcl.Expression `hcl:"env,optional"`
	Output         string         `hcl:"output,optional"`
}

func (n *Node) Expressions() []hcl.Expression {
	return []hcl.Expression{
		n.Package, n.Executable, n.Name, n.Namespace, n.Arguments,
		n.ParameterFiles, n.Parameters, n.Remappings, n.Env,
	}
}

// Process is the body of a `process "<label>"` block: an arbitrary command.
type Process struct {
	Cmd    hcl.Expression `hcl:"cmd"`
	Env    hcl.Expression `hcl:"env,optional"`
	Output string         `hcl:"output,optional"`
}

func (p *Process) Expressions() []hcl.Expression {
	return []hcl.Expression{p.Cmd, p.Env}
}
