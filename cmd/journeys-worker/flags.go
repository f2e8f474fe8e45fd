package main

import (
	"github.com/dukex/journeys/pkg/scheduler"
	cli "github.com/urfave/cli/v3"
)

func databaseFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "database-url",
		Usage:    "Database connection URL for persistence (postgres://... or file://...)",
		Required: required,
		Sources:  cli.EnvVars("DATABASE_URL"),
	}
}

func logLevelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		Value:   "info",
		Sources: cli.EnvVars("LOG_LEVEL"),
	}
}

func mailerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "mailer-queue-url",
			Usage:   "Redis URL that also receives campaign dispatches; the database mailer_queue always records them",
			Sources: cli.EnvVars("MAILER_QUEUE_URL"),
		},
		&cli.StringFlag{
			Name:    "mailer-queue-key",
			Usage:   "Redis list receiving campaign dispatches",
			Sources: cli.EnvVars("MAILER_QUEUE_KEY"),
		},
	}
}

func schedulerFlags() []cli.Flag {
	defaults := scheduler.DefaultConfig()

	return []cli.Flag{
		&cli.StringFlag{
			Name:    "tick-spec",
			Usage:   "Cron spec of the scheduling tick",
			Value:   defaults.Spec,
			Sources: cli.EnvVars("TICK_SPEC"),
		},
		&cli.IntFlag{
			Name:    "batch-size",
			Usage:   "Maximum journeys processed per tick",
			Value:   defaults.BatchSize,
			Sources: cli.EnvVars("BATCH_SIZE"),
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Usage:   "Journeys processed in parallel within a tick",
			Value:   defaults.Concurrency,
			Sources: cli.EnvVars("CONCURRENCY"),
		},
		&cli.BoolFlag{
			Name:    "continue-inactive",
			Usage:   "Keep advancing journeys of automations deactivated after they started",
			Value:   defaults.ContinueInactive,
			Sources: cli.EnvVars("CONTINUE_INACTIVE"),
		},
		&cli.IntFlag{
			Name:    "attempts-warn-threshold",
			Usage:   "Warn when a journey has been claimed more often than this without advancing",
			Value:   defaults.AttemptsWarnThreshold,
			Sources: cli.EnvVars("ATTEMPTS_WARN_THRESHOLD"),
		},
		&cli.DurationFlag{
			Name:    "claim-timeout",
			Usage:   "How long a journey may stay processing before another tick claims it again",
			Value:   defaults.ClaimTimeout,
			Sources: cli.EnvVars("CLAIM_TIMEOUT"),
		},
	}
}

func schedulerConfig(command *cli.Command) scheduler.Config {
	return scheduler.Config{
		Spec:                  command.String("tick-spec"),
		BatchSize:             command.Int("batch-size"),
		Concurrency:           command.Int("concurrency"),
		ContinueInactive:      command.Bool("continue-inactive"),
		AttemptsWarnThreshold: command.Int("attempts-warn-threshold"),
		ClaimTimeout:          command.Duration("claim-timeout"),
	}
}
