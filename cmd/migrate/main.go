package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/KalilovM/topshopes-backend/internal/bootstrap"
	"github.com/KalilovM/topshopes-backend/pkg/config"
	"github.com/KalilovM/topshopes-backend/pkg/db"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
	"github.com/KalilovM/topshopes-backend/pkg/migrate"
)

// commands forwarded to goose unchanged.
var gooseCommands = map[string]bool{
	"up":     true,
	"down":   true,
	"redo":   true,
	"status": true,
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|redo|status|version|create|validate")
	dir := flag.String("dir", "", "migrations directory (defaults to the embedded set; create writes to "+migrate.DefaultDir+")")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cfg, err := config.Load()
	exitOn(context.Background(), logg, "load config", err)

	logg = bootstrap.NewLogger("migrate", cfg.App)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	switch *cmd {
	case "create":
		if *name == "" {
			exitOn(ctx, logg, "create", fmt.Errorf("missing -name"))
		}
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, *name)
		exitOn(ctx, logg, "create migration", err)
		fmt.Println("created migration:", path)
		return
	case "validate":
		exitOn(ctx, logg, "validate migrations", migrate.ValidateDir(*dir))
		fmt.Println("migration validation passed")
		return
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(ctx, logg, "connect database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	exitOn(ctx, logg, "open sql handle", err)

	fsys, err := migrate.Source(*dir)
	exitOn(ctx, logg, "open migrations", err)

	exitOn(ctx, logg, "goose "+*cmd, runDB(ctx, logg, sqlDB, fsys, *cmd, *version))
	logg.Info(ctx, "migration command finished")
}

func runDB(ctx context.Context, logg *logger.Logger, sqlDB *sql.DB, fsys fs.FS, cmd, version string) error {
	if gooseCommands[cmd] {
		return migrate.Run(ctx, logg, sqlDB, fsys, cmd)
	}
	if cmd != "version" {
		return fmt.Errorf("unknown -cmd value %q", cmd)
	}
	if version == "" {
		return fmt.Errorf("missing -version for version command")
	}
	return migrate.MigrateToVersion(ctx, logg, sqlDB, fsys, version)
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("migrate: %s failed", step), err)
	os.Exit(1)
}
