// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the launch lifecycle, decoupled from any
// specific entrypoint like a CLI.
//
// An App runs in one of four modes: launch (the default), show-args,
// dry-run and cleanup. Each mode reads the launch description through a
// config.Loader; cleanup reads only the launch journal.
package app
