// Package cli implements the chaoskit command-line interface.
//
// Commands:
//
//   - validate: load and hydrate a policy document and print what it does
//   - simulate: run dispatches against a policy and report the outcomes
//   - demo: run CRUD scenarios against a chaos-guarded datastore
//   - version: print build information
//
// Settings come from flags, CHAOSKIT_* environment variables and config
// files, in that order of precedence (see internal/cliconfig).
package cli
