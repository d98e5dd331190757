// Package hcl provides the concrete HCL implementation of the config.Loader
// interface. It parses launch files, decodes their blocks with the schema
// package and translates HCL expressions into substitution trees that are
// evaluated lazily at launch time.
package hcl
