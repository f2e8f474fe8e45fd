// Package main provides the journeys worker: it turns inbound events into
// journeys and runs the scheduling tick that advances them.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:                  "journeys-worker",
		Usage:                 "Start journeys and advance them through their automations",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewRunCommand(),
			NewTickCommand(),
			NewValidateCommand(),
		},
	}
}

func main() {
	err := newRootCommand().Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
