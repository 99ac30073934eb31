// Package main hosts the fieldsync CLI entrypoint and command graph.
//
// The Cobra-based command tree runs one synchronization cycle per "sync"
// invocation, inspects and edits the persisted entry store, scaffolds
// configuration, and checks the environment. It centralizes configuration
// resolution, store opening, and logger setup so subcommands stay small.
//
// Add functionality to the internal packages first, then surface it through
// a command or flag here.
package main
