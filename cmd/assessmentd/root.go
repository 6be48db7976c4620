package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rtdacademy/assessments/internal/config"
	"github.com/rtdacademy/assessments/internal/db"
	"github.com/rtdacademy/assessments/internal/docstore"
	"github.com/rtdacademy/assessments/internal/gradebook"
)

var rootCmd = &cobra.Command{
	Use:          "assessmentd",
	Short:        "Assessment generation and evaluation service",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional dotenv file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(ltiCmd)
}

// loadConfig resolves the configuration of a command from --env-file and the environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	return config.Load(envFile)
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openSQL opens the relational database and applies both schemas.
func openSQL(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := gradebook.Migrate(ctx, dbh, cfg.DBDriver); err != nil {
		_ = dbh.Close()
		return nil, fmt.Errorf("gradebook migrate: %w", err)
	}
	return dbh, nil
}

// usesSQL reports whether the configured backends need a relational database.
// Only the all-memory setup runs without one.
func usesSQL(cfg config.Config) bool {
	return cfg.DocStore != "memory"
}

// openDocStore returns the configured store, its close func and, for remote
// stores not covered by the database probe, a readiness check.
func openDocStore(ctx context.Context, cfg config.Config, dbh *sql.DB) (docstore.Store, func(), func(context.Context) error, error) {
	switch cfg.DocStore {
	case "memory":
		return docstore.NewInMemoryStore(), func() {}, nil, nil
	case "sql":
		return docstore.NewSQLStore(dbh, cfg.DBDriver), func() {}, nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return docstore.NewRedisStore(client, "assessments:"), func() { _ = client.Close() }, ping, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown DOCSTORE %q (expected memory|sql|redis)", cfg.DocStore)
	}
}
