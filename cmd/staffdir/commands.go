package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/staffdir/staffdir/cmd/staffdir/cli"
	"github.com/staffdir/staffdir/internal/app"
	"github.com/staffdir/staffdir/internal/platform/db"
)

const usage = `usage: staffdir [command]

commands:
  (none)                 run the HTTP server
  migrate                apply database migrations and exit
  jobs trigger <task>    enqueue a background task (sessions:sweep)
  jobs stats             print default queue statistics`

func runCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	switch args[0] {
	case "migrate":
		pool, err := openPool(ctx, cfg)
		if err != nil {
			logger.Error("migrate", slog.Any("error", err))
			return 1
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			return 1
		}
		logger.Info("migrations applied")
		return 0
	case "jobs":
		jobsCLI := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer func() {
			if err := jobsCLI.Close(); err != nil {
				logger.Warn("jobs cli close", slog.Any("error", err))
			}
		}()
		return jobsCLI.Run(ctx, args[1:], os.Stdout, os.Stderr)
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
}
