package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
)

var resultsCommand = &cli.Command{
	Name:  "results",
	Usage: "List, export or clear completed plates",
	Subcommands: []*cli.Command{
		{
			Name:   "list",
			Usage:  "Print completed plates",
			Action: runResultsList,
		},
		{
			Name:  "export",
			Usage: "Write completed plates to a file",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "format",
					Usage: "txt or xlsx (default: from the output extension, else txt)",
				},
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "Output file (default: stdout for txt)",
				},
			},
			Action: runResultsExport,
		},
		{
			Name:   "clear",
			Usage:  "Forget all completed plates",
			Action: runResultsClear,
		},
	},
	Action: runResultsList,
}

func runResultsList(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	results := e.sink.Results()
	if len(results) == 0 {
		fmt.Println("No results")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%3d  %s  %s\n", i+1, r.Plate,
			paint(colorGray, r.CompletedAt.Format("2006-01-02 15:04:05")+"  "+r.Operator))
	}
	return nil
}

func exportFormat(format, output string) (string, error) {
	if format == "" {
		if strings.EqualFold(filepath.Ext(output), ".xlsx") {
			return "xlsx", nil
		}
		return "txt", nil
	}
	switch f := strings.ToLower(format); f {
	case "txt", "xlsx":
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (use txt or xlsx)", format)
}

func runResultsExport(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	output := c.String("output")
	format, err := exportFormat(c.String("format"), output)
	if err != nil {
		return err
	}
	if format == "xlsx" && output == "" {
		return fmt.Errorf("xlsx export needs --output")
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output) //#nosec G304 -- user-provided output path
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if format == "xlsx" {
		err = e.sink.WriteXLSX(w)
	} else {
		err = e.sink.WriteText(w)
	}
	if err != nil {
		return err
	}
	if output != "" {
		printSetupSuccess(fmt.Sprintf("Exported %d plates to %s", len(e.sink.Results()), output))
	}
	return nil
}

func runResultsClear(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	n := len(e.sink.Results())
	e.sink.ClearResults()
	printSetupSuccess(fmt.Sprintf("Cleared %d plates", n))
	return nil
}
