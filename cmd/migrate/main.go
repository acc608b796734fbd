// Command migrate manages the warden moderation schema.
//
//	migrate up             apply pending SQL migrations
//	migrate auto           run GORM auto-migration (refused in prod without opt-in)
//	migrate status         show schema mode and pending migrations
//	migrate list           list the embedded migrations
//	migrate down <version> revert one applied migration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"warden/internal/config"
	"warden/internal/database"
	"warden/internal/middleware"
)

var errUsage = errors.New("usage: migrate <up|auto|status|list|down> [version]")

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		middleware.Logger.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errUsage
	}
	cmd := strings.ToLower(strings.TrimSpace(fs.Arg(0)))

	// list needs no database.
	if cmd == "list" {
		for _, m := range database.GetMigrations() {
			fmt.Printf("%s  %s\n", m, m.Checksum[:12])
		}
		return nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	log := middleware.Logger.With(slog.String("command", cmd), slog.String("env", cfg.Env))

	switch cmd {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return err
		}
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto-migrate moderation models: %w", err)
		}
		log.Info("moderation models auto-migrated")
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return err
		}
		log.Info("schema status",
			slog.String("mode", status.Mode),
			slog.Bool("run_sql", status.WillRunSQL),
			slog.Bool("run_auto", status.WillRunAutoMigrate),
			slog.Int("applied", len(status.AppliedVersions)),
			slog.Int("pending", len(status.PendingMigrations)),
		)
		for _, m := range status.PendingMigrations {
			log.Info("pending migration", slog.String("migration", m.String()))
		}
	case "down":
		if fs.NArg() < 2 {
			return fmt.Errorf("down needs a version: %w", errUsage)
		}
		version, err := strconv.Atoi(fs.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", fs.Arg(1), err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return err
		}
	default:
		return errUsage
	}
	return nil
}
