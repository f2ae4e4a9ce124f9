package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	a := &App{}
	app := &cli.App{
		Name:  "collabspace",
		Usage: "Teams, projects and tasks for small groups",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"COLLABSPACE_CONFIG"},
			},
		},
		Before:   a.Before,
		Commands: a.Commands(),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
