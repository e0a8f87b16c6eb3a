// Package cliconfig provides configuration loading for the chaoskit CLI.
//
// Values are layered with the following precedence (highest to lowest):
//
//  1. Command-line flags
//  2. Environment variables (CHAOSKIT_* prefix)
//  3. Local config file (.chaoskitrc.yaml in the current directory)
//  4. Global config file (~/.config/chaoskit/config.yaml)
//  5. Default values
//
// The source of each value is tracked in CLIConfig.Sources so the CLI can
// explain where a setting came from.
package cliconfig
