package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/appointment"
	"github.com/hackgods/clinic-slot-booking/internal/bootstrap"
	"github.com/hackgods/clinic-slot-booking/internal/config"
	"github.com/hackgods/clinic-slot-booking/internal/db"
	"github.com/hackgods/clinic-slot-booking/internal/logger"
)

func main() {
	if err := newRootCmd(openService).Execute(); err != nil {
		os.Exit(1)
	}
}

// openFunc yields a wired service and a cleanup func.
type openFunc func(ctx context.Context) (*appointment.Service, func(), error)

func loadEnv() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log.Named("clinicctl"), nil
}

func openService(ctx context.Context) (*appointment.Service, func(), error) {
	cfg, log, err := loadEnv()
	if err != nil {
		return nil, nil, err
	}
	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return app.Service, app.Shutdown, nil
}

func newRootCmd(open openFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "clinicctl",
		Short:         "Clinic booking administration",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(blockCmd(open))
	rootCmd.AddCommand(unblockCmd(open))
	rootCmd.AddCommand(blockedCmd(open))
	rootCmd.AddCommand(slotsCmd(open))
	rootCmd.AddCommand(availabilityCmd(open))
	rootCmd.AddCommand(markMissedCmd(open))

	return rootCmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadEnv()
			if err != nil {
				return err
			}
			if cfg.PostgresDSN == "" {
				return fmt.Errorf("POSTGRES_DSN is required")
			}

			ctx := cmd.Context()
			pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.Migrate(ctx, pool, log)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
}
