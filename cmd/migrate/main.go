package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal-api/migrations"
	"github.com/noah-isme/sma-portal-api/pkg/config"
	"github.com/noah-isme/sma-portal-api/pkg/database"
	"github.com/noah-isme/sma-portal-api/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		logr.Fatal("failed to open embedded migrations", zap.Error(err))
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, database.URL(cfg.Database))
	if err != nil {
		logr.Fatal("failed to initialise migrations", zap.Error(err))
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			logr.Warn("failed to close migration resources", zap.NamedError("source", sourceErr), zap.NamedError("database", dbErr))
		}
	}()

	if err := run(m, os.Args[1:], logr); err != nil {
		logr.Error("migration failed", zap.String("command", os.Args[1]), zap.Error(err))
		os.Exit(1)
	}
}

func run(m *migrate.Migrate, args []string, logr *zap.Logger) error {
	switch args[0] {
	case "up":
		return report(m.Up(), logr, "migrations applied")
	case "down":
		return report(m.Steps(-1), logr, "last migration rolled back")
	case "goto":
		if len(args) < 2 {
			return errors.New("goto requires a version")
		}
		version, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return report(m.Migrate(uint(version)), logr, "migrated to version")
	case "status":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logr.Info("no migrations applied yet")
			return nil
		}
		if err != nil {
			return err
		}
		logr.Info("current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func report(err error, logr *zap.Logger, done string) error {
	if errors.Is(err, migrate.ErrNoChange) {
		logr.Info("no change: database already up to date")
		return nil
	}
	if err != nil {
		return err
	}
	logr.Info(done)
	return nil
}

func printUsage() {
	fmt.Println("usage: migrate <command>")
	fmt.Println("commands:")
	fmt.Println("  up      apply all pending migrations")
	fmt.Println("  down    roll back the last migration")
	fmt.Println("  goto N  migrate to version N")
	fmt.Println("  status  print the current version")
}
