package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"wardline.app/api/common/logger"
	"wardline.app/api/core/config"
	"wardline.app/api/core/db"
)

func main() {
	command := flag.String("command", "up", "one of up, status, down")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	target := flag.Int64("target", 0, "version to roll back to with -command=down; 0 undoes the latest migration")
	flag.Parse()

	cfg, err := config.Load(config.ServiceTypeMigrate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg.DB.DSN, *command, *target); err != nil {
		slog.ErrorContext(ctx, "migrate failed", "command", *command, "error", err)
		cancel()
		os.Exit(1)
	}
	slog.InfoContext(ctx, "migrate done", "command", *command)
}

func run(ctx context.Context, dsn, command string, target int64) error {
	m, err := db.NewMigrator(dsn)
	if err != nil {
		return err
	}

	commands := map[string]func(context.Context) error{
		"up":     m.Up,
		"status": m.Status,
		"down": func(ctx context.Context) error {
			return m.Down(ctx, target)
		},
	}
	fn, ok := commands[command]
	if !ok {
		return fmt.Errorf("unknown command %q", command)
	}
	return fn(ctx)
}
