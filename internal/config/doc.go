// Package config defines the format-agnostic launch description and the
// Loader interface that reads it from a concrete launch file format.
//
// The `config.Description` is the single input of the orchestrator.
// Loaders for concrete formats, such as HCL, live in separate packages.
package config
