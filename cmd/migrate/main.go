package main

import (
	"flag"
	"fmt"
	"os"

	"movie-mate/config"
	"movie-mate/logging"
	"movie-mate/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load config")
	}

	var (
		dataPath = flag.String("data", cfg.DataPath, "Path to database directory")
		command  = flag.String("cmd", "up", "Migration command: up, down, status, version, reset, stats")
	)
	flag.Parse()

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: "console"})

	sqliteStorage := storage.NewSQLiteStorage(*dataPath)
	if err := sqliteStorage.Initialize(); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer sqliteStorage.Close()

	switch *command {
	case "up":
		if err := sqliteStorage.RunMigrations(); err != nil {
			logging.Fatal().Err(err).Msg("Failed to run migrations")
		}
		fmt.Println("Migrations completed successfully")

	case "down":
		if err := sqliteStorage.RollbackMigration(); err != nil {
			logging.Fatal().Err(err).Msg("Failed to rollback migration")
		}
		fmt.Println("Migration rolled back successfully")

	case "status":
		migrationManager := sqliteStorage.GetMigrationManager()
		if err := migrationManager.Initialize(); err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize migration manager")
		}
		if err := migrationManager.Status(); err != nil {
			logging.Fatal().Err(err).Msg("Failed to get migration status")
		}

	case "version":
		version, err := sqliteStorage.GetDatabaseVersion()
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to get database version")
		}
		fmt.Printf("Database version: %d\n", version)

	case "reset":
		if err := sqliteStorage.ResetDatabase(); err != nil {
			logging.Fatal().Err(err).Msg("Failed to reset database")
		}
		fmt.Println("Database reset completed successfully")

	case "stats":
		stats, err := sqliteStorage.GetStats()
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to read stats")
		}
		for _, key := range []string{"slots", "ratings", "users", "dataset_movies"} {
			fmt.Printf("%-15s %d\n", key, stats[key])
		}

	default:
		fmt.Printf("Unknown command: %s\n", *command)
		fmt.Println("Available commands: up, down, status, version, reset, stats")
		os.Exit(1)
	}
}
