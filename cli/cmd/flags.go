// Package cmd provides CLI commands for the stretch and stretchd
// binaries.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for read-only commands.
var (
	// ConfigFlag points at the stretch.yaml configuration file.
	// Built-in defaults apply when absent.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to stretch.yaml",
		EnvVars: []string{"STRETCH_CONFIG"},
	}

	// RobotHostFlag overrides the configured daemon host.
	RobotHostFlag = &cli.StringFlag{
		Name:    "robot-host",
		Usage:   "Robot daemon host (overrides config)",
		EnvVars: []string{"STRETCH_ROBOT_HOST"},
	}

	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables the Bubble Tea live view.
	// Only valid for watch.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (watch only)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can reject it with a
// specific message instead of a generic "flag not defined" error.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		RobotHostFlag,
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}
