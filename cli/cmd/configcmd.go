package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/fazildgr8/stretch-ai/cli/render"
	"github.com/fazildgr8/stretch-ai/config"
)

// ConfigCommand returns the config command group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage stretch.yaml configuration",
		Subcommands: []*cli.Command{
			configInitCommand(),
			configShowCommand(),
		},
	}
}

func configInitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write the annotated default config file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Where to write the config",
				Value: "stretch.yaml",
			},
		},
		Action: func(c *cli.Context) error {
			path := c.String("path")
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
			return nil
		},
	}
}

func configShowCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print the effective configuration",
		Flags: ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			if c.Bool("tui") {
				return cli.Exit("TUI mode is not supported for config show", 1)
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			// Config files are YAML, so the effective config prints as
			// YAML unless a format is forced.
			format, err := render.ParseFormat(c.String("format"))
			if err != nil {
				return err
			}
			if format == "" {
				format = render.FormatYAML
			}
			r := render.NewRendererWithWriter(format, c.Bool("no-color"), os.Stdout)
			return r.Render(cfg)
		},
	}
}
