package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coachrag/internal/config"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signalContext()
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		logutil.GetLogger(context.Background()).Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	rootCmd := &cobra.Command{
		Use:           "coachrag",
		Short:         "coach scoped document ingestion and semantic search",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json (optional, env vars are read either way)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Init(
			cfg.LogConfig.File,
			cfg.LogConfig.Level,
			int(cfg.LogConfig.FileCount),
			int(cfg.LogConfig.FileSize),
			int(cfg.LogConfig.KeepDays),
			cfg.LogConfig.Console,
		)
		logutil.GetLogger(context.Background()).Debug("config loaded", zap.String("config", configPath))
		return cfg, nil
	}

	rootCmd.AddCommand(
		newServeCmd(load),
		newIngestCmd(load),
		newSearchCmd(load),
		newReconcileCmd(load),
		newMigrateCmd(load),
		newTokenCmd(load),
	)
	return rootCmd
}

type configLoader func() (*config.Config, error)

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if !cfg.Database.Configured() {
				return fmt.Errorf("database is not configured: set %s or database.dsn", config.EnvDatabaseDSN)
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
