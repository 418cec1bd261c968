package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var operatorsCommand = &cli.Command{
	Name:  "operators",
	Usage: "Manage the officer names offered for runs",
	Subcommands: []*cli.Command{
		{
			Name:   "list",
			Usage:  "Print names; the selected one is marked",
			Action: runOperatorsList,
		},
		{
			Name:      "add",
			Usage:     "Add a name",
			ArgsUsage: "NAME",
			Action:    runOperatorsAdd,
		},
		{
			Name:      "remove",
			Usage:     "Remove a name",
			ArgsUsage: "NAME",
			Action:    runOperatorsRemove,
		},
		{
			Name:      "select",
			Usage:     "Make NAME the default for runs",
			ArgsUsage: "NAME",
			Action:    runOperatorsSelect,
		},
	},
	Action: runOperatorsList,
}

func runOperatorsList(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	selected := e.operators.Selected()
	for _, name := range e.operators.List() {
		mark := " "
		if name == selected {
			mark = "*"
		}
		fmt.Printf("%s %s\n", mark, name)
	}
	return nil
}

func nameArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one NAME")
	}
	return c.Args().First(), nil
}

func runOperatorsAdd(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	added, err := e.operators.Add(name)
	if err != nil {
		return err
	}
	if !added {
		printWarning(fmt.Sprintf("%s already listed", name))
		return nil
	}
	printSetupSuccess("Added " + name)
	return nil
}

func runOperatorsRemove(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	removed, err := e.operators.Remove(name)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%s is not listed", name)
	}
	printSetupSuccess("Removed " + name)
	return nil
}

func runOperatorsSelect(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	if err := e.operators.Select(name); err != nil {
		return err
	}
	printSetupSuccess("Selected " + name)
	return nil
}
