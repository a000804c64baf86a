// Package main provides the stretch CLI entrypoint: the remote-side
// tool for observing and driving a robot served by stretchd.
//
// Usage:
//
//	stretch <command> [subcommand] [options]
//
// Exit codes for `task run`:
//   - 0: task succeeded
//   - 1: task failed
//   - 2: fatal robot condition
//   - 3: canceled
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/fazildgr8/stretch-ai/cli/cmd"
	"github.com/fazildgr8/stretch-ai/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	_ = godotenv.Load(".env")

	app := &cli.App{
		Name:           "stretch",
		Usage:          "Remote CLI for the Stretch robot daemon",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.StateCommand(),
			cmd.WatchCommand(),
			cmd.TaskCommand(),
			cmd.MapsCommand(),
			cmd.RecordCommand(),
			cmd.ConfigCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit() so task run's
// outcome codes reach the shell.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N"; skip those.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
