// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package params

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	rosParametersKey = "ros__parameters"
	wildcardSection  = "/**"
)

// Parse flattens a YAML parameter document. When the document uses the ROS 2
// layout, only the wildcard section and the section of nodeName contribute,
// the node section overriding the wildcard. Otherwise the whole document is a
// flat parameter map. Nested maps are joined with ".".
func Parse(data []byte, nodeName string) (Table, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	table := make(Table)
	if len(doc.Content) == 0 {
		return table, nil
	}

	root := resolveAlias(doc.Content[0])
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return table, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: top level must be a mapping", root.Line)
	}

	if !hasROSLayout(root) {
		return table, flatten(table, "", root)
	}

	sections := []string{wildcardSection}
	if name := strings.TrimPrefix(nodeName, "/"); name != "" {
		sections = append(sections, name)
	}
	for _, want := range sections {
		for i := 0; i+1 < len(root.Content); i += 2 {
			section := strings.TrimPrefix(root.Content[i].Value, "/")
			if root.Content[i].Value != want && section != want {
				continue
			}
			body := rosParameters(resolveAlias(root.Content[i+1]))
			if body == nil {
				continue
			}
			if err := flatten(table, "", body); err != nil {
				return nil, err
			}
		}
	}
	return table, nil
}

func hasROSLayout(root *yaml.Node) bool {
	for i := 1; i < len(root.Content); i += 2 {
		if rosParameters(resolveAlias(root.Content[i])) != nil {
			return true
		}
	}
	return false
}

func rosParameters(section *yaml.Node) *yaml.Node {
	if section.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(section.Content); i += 2 {
		if section.Content[i].Value == rosParametersKey {
			if body := resolveAlias(section.Content[i+1]); body.Kind == yaml.MappingNode {
				return body
			}
		}
	}
	return nil
}

func flatten(table Table, prefix string, mapping *yaml.Node) error {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i].Value
		if prefix != "" {
			key = prefix + "." + key
		}
		value := resolveAlias(mapping.Content[i+1])

		switch value.Kind {
		case yaml.MappingNode:
			if err := flatten(table, key, value); err != nil {
				return err
			}
		case yaml.ScalarNode:
			table[key] = value.Value
		case yaml.SequenceNode:
			rendered, err := renderSequence(value)
			if err != nil {
				return fmt.Errorf("parameter %q: %w", key, err)
			}
			table[key] = rendered
		default:
			return fmt.Errorf("line %d: parameter %q has an unsupported value", value.Line, key)
		}
	}
	return nil
}

// renderSequence writes a YAML flow list, keeping each plain scalar's source
// text. Quoted scalars stay strings.
func renderSequence(seq *yaml.Node) (string, error) {
	items := make([]string, 0, len(seq.Content))
	for _, item := range seq.Content {
		item = resolveAlias(item)
		switch item.Kind {
		case yaml.ScalarNode:
			if item.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 || strings.ContainsAny(item.Value, ",[]") {
				items = append(items, FlowString(item.Value))
			} else {
				items = append(items, item.Value)
			}
		case yaml.SequenceNode:
			inner, err := renderSequence(item)
			if err != nil {
				return "", err
			}
			items = append(items, inner)
		default:
			return "", fmt.Errorf("line %d: lists may only hold scalars or lists", item.Line)
		}
	}
	return FlowList(items), nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
