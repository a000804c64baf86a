package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fazildgr8/stretch-ai/cli/render"
	"github.com/fazildgr8/stretch-ai/mapstore"
)

// MapInfo is the rendered view of one saved map.
type MapInfo struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	SavedAt   string `json:"saved_at"`
}

// MapActionResponse reports a requested save or load. The daemon
// performs the work asynchronously; status stays "requested" because
// the command channel carries no acknowledgement.
type MapActionResponse struct {
	Action string `json:"action"`
	Map    string `json:"map"`
	Status string `json:"status"`
}

// MapsCommand returns the maps command group.
func MapsCommand() *cli.Command {
	return &cli.Command{
		Name:  "maps",
		Usage: "Manage saved navigation maps",
		Subcommands: []*cli.Command{
			mapsListCommand(),
			mapsSaveCommand(),
			mapsLoadCommand(),
		},
	}
}

func mapsListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List saved maps from the configured backend",
		Flags: ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}

			if c.Bool("tui") {
				return cli.Exit("TUI mode is not supported for maps list", 1)
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			store, err := buildMapStore(c.Context, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			infos, err := store.List(c.Context)
			if err != nil {
				return fmt.Errorf("listing maps: %w", err)
			}

			return r.Render(mapInfoRows(infos))
		},
	}
}

func mapsSaveCommand() *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "Ask the robot to save its current map",
		ArgsUsage: "<name>",
		Flags:     ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			return mapAction(c, "save")
		},
	}
}

func mapsLoadCommand() *cli.Command {
	return &cli.Command{
		Name:      "load",
		Usage:     "Ask the robot to load a saved map",
		ArgsUsage: "<name>",
		Flags:     ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			return mapAction(c, "load")
		},
	}
}

// mapAction issues a save or load request over the command channel.
func mapAction(c *cli.Context, action string) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit(fmt.Sprintf("TUI mode is not supported for maps %s", action), 1)
	}

	name := c.Args().First()
	if name == "" {
		return cli.Exit(fmt.Sprintf("maps %s requires a map name argument", action), 1)
	}
	if err := mapstore.ValidateName(name); err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	cl, err := dialClient(c.Context, c, cfg, dialStreams{command: true})
	if err != nil {
		return fmt.Errorf("dialing robot: %w", err)
	}
	defer cl.Close()

	switch action {
	case "save":
		err = cl.SaveMap(name)
	case "load":
		err = cl.LoadMap(name)
	}
	if err != nil {
		return fmt.Errorf("requesting map %s: %w", action, err)
	}

	return r.Render(MapActionResponse{
		Action: action,
		Map:    name,
		Status: "requested",
	})
}

// mapInfoRows converts backend records for rendering.
func mapInfoRows(infos []mapstore.Info) []MapInfo {
	rows := make([]MapInfo, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, MapInfo{
			Name:      info.Name,
			SizeBytes: info.Size,
			SavedAt:   info.SavedAt.Format(time.RFC3339),
		})
	}
	return rows
}
