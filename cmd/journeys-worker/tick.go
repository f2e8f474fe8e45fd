package main

import (
	"context"
	"encoding/json"

	"github.com/dukex/journeys/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func NewTickCommand() *cli.Command {
	flags := []cli.Flag{databaseFlag(true), logLevelFlag()}
	flags = append(flags, mailerFlags()...)
	flags = append(flags, schedulerFlags()...)

	return &cli.Command{
		Name:  "tick",
		Usage: "Run a single scheduling tick and print what happened",
		Flags: flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("journeys-worker").With("action", "tick")

			worker, err := NewWorker(ctx, logger, workerConfig{
				DatabaseURL:    command.String("database-url"),
				MailerQueueURL: command.String("mailer-queue-url"),
				MailerQueueKey: command.String("mailer-queue-key"),
				Scheduler:      schedulerConfig(command),
			})
			if err != nil {
				return err
			}

			defer func() {
				err := worker.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close worker", "error", err)
				}
			}()

			result, err := worker.Tick(ctx)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(command.Root().Writer)
			encoder.SetIndent("", "  ")

			return encoder.Encode(result)
		},
	}
}
