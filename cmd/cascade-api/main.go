package main

import (
	"context"
	"os"
	"time"

	"github.com/cascadehq/cascade/pkg/cmd"
	"github.com/cascadehq/cascade/pkg/log"
	"github.com/cascadehq/cascade/pkg/otelhelper"
	"github.com/cascadehq/cascade/pkg/runner"
	"github.com/cascadehq/cascade/pkg/session"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "cascade-api",
		Usage:                 "Manage and execute analysis pipelines",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Store URL (file path, redis:// or postgres://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "kernel-url",
				Usage:    "Base URL of the execution kernel service",
				Required: true,
				Sources:  cli.EnvVars("KERNEL_URL"),
			},
			&cli.StringFlag{
				Name:    "artifact-root",
				Usage:   "Directory shared with the kernel for persisted node artifacts",
				Value:   "./data/artifacts",
				Sources: cli.EnvVars("ARTIFACT_ROOT"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel, noop)",
				Value:   "noop",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.DurationFlag{
				Name:    "exec-timeout",
				Usage:   "Timeout for each code execution step",
				Value:   runner.DefaultExecTimeout,
				Sources: cli.EnvVars("EXEC_TIMEOUT"),
			},
			&cli.IntFlag{
				Name:    "max-sessions",
				Usage:   "Maximum concurrent live sessions",
				Value:   session.DefaultMaxSessions,
				Sources: cli.EnvVars("MAX_SESSIONS"),
			},
			&cli.DurationFlag{
				Name:    "session-idle",
				Usage:   "Idle duration after which a live session is reclaimed",
				Value:   session.DefaultIdleAfter,
				Sources: cli.EnvVars("SESSION_IDLE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Cascade API")

			st, err := cmd.NewStore(ctx, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := st.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close store", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			if err := startLifecycleListener(ctx, eventBus, logger); err != nil {
				return err
			}

			var tracer trace.Tracer

			if command.Bool("tracing") {
				tracer, err = otelhelper.NewTracer(ctx, "cascade-api")
				if err != nil {
					return err
				}
			}

			sessions := cmd.NewSessionManager(
				command.String("kernel-url"),
				logger,
				int(command.Int("max-sessions")),
				command.Duration("session-idle"),
			)
			sessions.StartReaper(ctx, time.Minute)

			defer func() {
				if err := sessions.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close sessions", "error", err)
				}
			}()

			api := NewAPI(logger, st, sessions, eventBus, tracer, runner.Config{
				ArtifactRoot: command.String("artifact-root"),
				ExecTimeout:  command.Duration("exec-timeout"),
			})

			if err := api.Start(int(command.Int("port"))); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
