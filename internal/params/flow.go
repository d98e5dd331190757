// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package params

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FlowList joins rendered items into a YAML flow sequence.
func FlowList(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}

// FlowString renders s as a flow sequence item that reads back as the
// string s. Text that YAML would split, or read as a bool, number or null,
// is double quoted.
func FlowString(s string) string {
	if plainString(s) {
		return s
	}
	return strconv.Quote(s)
}

// yaml11Bools are read as booleans by YAML 1.1 parsers such as the one ROS
// uses, although yaml.v3 resolves them as strings.
var yaml11Bools = map[string]struct{}{
	"y": {}, "Y": {}, "yes": {}, "Yes": {}, "YES": {},
	"n": {}, "N": {}, "no": {}, "No": {}, "NO": {},
	"on": {}, "On": {}, "ON": {},
	"off": {}, "Off": {}, "OFF": {},
}

func plainString(s string) bool {
	if s == "" || strings.TrimSpace(s) != s || strings.ContainsAny(s, ",[]{}#\"'\n") {
		return false
	}
	if _, ok := yaml11Bools[s]; ok {
		return false
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil || len(doc.Content) != 1 {
		return false
	}
	n := doc.Content[0]
	return n.Kind == yaml.ScalarNode && n.Tag == "!!str" && n.Value == s
}
