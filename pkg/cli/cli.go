// Package cli provides the command-line interface for yunduanban-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Config file (default: <home>/config.yaml)",
		EnvVars: []string{"YDB_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"s"},
		Usage:   "ADB serial of the device to drive",
	},
	&cli.StringFlag{
		Name:  "layout",
		Usage: "Step-table override file (YAML)",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"YDB_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the command tree.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "yunduanban-runner",
		Usage:   "Ticketing automation for the Yunduanban app",
		Version: Version,
		Description: `Reads violation plates from a chat app on an Android device, issues a
simple-procedure ticket for each in Yunduanban and records the plates done.

Examples:
  yunduanban-runner run --operator 张三
  yunduanban-runner run --dry-run --operator 张三
  yunduanban-runner serve --listen 127.0.0.1:8765
  yunduanban-runner results export --format xlsx -o plates.xlsx
  yunduanban-runner probe --region 450,128,165,75`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			serveCommand,
			resultsCommand,
			operatorsCommand,
			hierarchyCommand,
			probeCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
