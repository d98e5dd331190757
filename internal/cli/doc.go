// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates CLI flags, positional `name:=value` launch arguments and the
// TOML overrides file into the application's configuration.
package cli
