// Package main provides the stretchd entrypoint: the daemon that runs
// on the robot, publishes telemetry, and consumes commands.
//
// Usage:
//
//	stretchd serve [options]
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
		Name:           "stretchd",
		Usage:          "Stretch robot daemon",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
