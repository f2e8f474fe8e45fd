package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/journeys/pkg/channels/kafka"
	"github.com/dukex/journeys/pkg/cmd"
	"github.com/dukex/journeys/pkg/log"
	"github.com/dukex/journeys/pkg/otelhelper"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

const shutdownTimeout = 30 * time.Second

func NewRunCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "worker-id",
			Aliases: []string{"id"},
			Usage:   "Custom worker ID (auto-generated if not provided)",
			Sources: cli.EnvVars("WORKER_ID"),
		},
		databaseFlag(true),
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (kafka, gochannel)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export traces over OTLP/HTTP (configured by the OTEL_EXPORTER_OTLP_* variables)",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
		logLevelFlag(),
	}
	flags = append(flags, mailerFlags()...)
	flags = append(flags, schedulerFlags()...)

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Consume trigger events and run the scheduling tick until interrupted",
		Flags:   flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("journeys-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing journeys worker")

			if command.Bool("tracing") {
				_, shutdown, err := otelhelper.NewTracer(ctx, "journeys-worker")
				if err != nil {
					return err
				}

				defer func() {
					err := shutdown(context.WithoutCancel(ctx))
					if err != nil {
						logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
					}
				}()
			}

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
				err := worker.Close(context.WithoutCancel(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close worker", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), kafka.ParseBrokers(command.String("kafka-brokers")), logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = worker.Start(runCtx, eventBus)
			if err != nil {
				return err
			}

			<-runCtx.Done()
			logger.InfoContext(ctx, "Shutting down worker...")

			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			return worker.Stop(stopCtx)
		},
	}
}
