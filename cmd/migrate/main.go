package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version YYYYMMDDHHMMSS (for version)")
	flag.Parse()

	if err := run(*cmd, *dir, *name, *version); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", *cmd, err)
		os.Exit(1)
	}
}

func run(cmd, dir, name, version string) error {
	source := migrate.Embedded()
	if dir != "" {
		source = os.DirFS(dir)
	}

	// create and validate never touch the database.
	switch cmd {
	case "create":
		if name == "" {
			return fmt.Errorf("missing -name")
		}
		target := dir
		if target == "" {
			target = migrate.SourceDir
		}
		path, err := migrate.Create(target, name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if err := migrate.Validate(source); err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		Fields:      map[string]any{"env": cfg.App.Env},
	})
	ctx := logg.WithField(context.Background(), "cmd", cmd)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}
	migrator, err := migrate.New(sqlDB, source)
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		printResults("applied", applied)
	case "down":
		res, err := migrator.Down(ctx)
		if err != nil {
			return err
		}
		if res != nil {
			printResults("rolled back", []migrate.Result{*res})
		}
	case "status":
		rows, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			state := "pending"
			if row.Applied {
				state = "applied " + row.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%d\t%-40s\t%s\n", row.Version, row.Path, state)
		}
	case "version":
		target, err := strconv.ParseInt(version, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid -version %q (expected YYYYMMDDHHMMSS)", version)
		}
		moved, err := migrator.ToVersion(ctx, target)
		if err != nil {
			return err
		}
		printResults("migrated", moved)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	logg.Info(ctx, "migrate.done")
	return nil
}

func printResults(verb string, results []migrate.Result) {
	if len(results) == 0 {
		fmt.Println("no migrations to run")
		return
	}
	for _, r := range results {
		fmt.Printf("%s %d %s (%s)\n", verb, r.Version, r.Path, r.Duration.Round(time.Millisecond))
	}
}
