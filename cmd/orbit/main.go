// Команда orbit: точка входа Orbit API (serve, migrate, seed).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xela07ax/orbit-auth/internal/core"
	"github.com/xela07ax/orbit-auth/internal/infra"
	"github.com/xela07ax/orbit-auth/internal/repository/postgres"
	"go.uber.org/zap"
)

func main() {
	// .env не обязателен: в Docker/K8s переменные приходят из окружения
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "orbit",
		Short:         "Orbit sales dashboard API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(serveCmd(&configPath), migrateCmd(&configPath), seedCmd(&configPath))
	return cmd
}

// setup загружает конфиг и логгер для всех команд.
func setup(configPath string) (*infra.Config, *zap.Logger, error) {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func serveCmd(configPath *string) *cobra.Command {
	var seedPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return serve(cmd.Context(), cfg, logger, seedPath)
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed", "", "Seed users from YAML before start (handy with the memory driver)")
	return cmd
}

func serve(ctx context.Context, cfg *infra.Config, logger *zap.Logger, seedPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Сборка зависимостей
	app, err := core.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer app.Close()

	if seedPath != "" {
		if err := seed(ctx, app, seedPath, logger); err != nil {
			return err
		}
	}

	// 2. HTTP Server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      app.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Orbit API started",
			zap.String("addr", srv.Addr),
			zap.String("auth_mode", cfg.Auth.Mode),
			zap.String("database", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 3. Graceful Shutdown
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("Orbit API stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Orbit API exited properly")
	return nil
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if cfg.Database.Driver != infra.DriverPostgres {
				return fmt.Errorf("migrate requires database.driver=postgres, got %q", cfg.Database.Driver)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			pool, err := postgres.NewPool(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.NewRepo(pool).Migrate(ctx); err != nil {
				return err
			}
			logger.Info("schema applied")
			return nil
		},
	}
}

func seedCmd(configPath *string) *cobra.Command {
	var seedPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create users from a YAML fixture file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if cfg.Database.Driver != infra.DriverPostgres {
				return fmt.Errorf("seed command needs a persistent store; use `serve --seed` with the memory driver")
			}

			app, err := core.Build(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()
			return seed(cmd.Context(), app, seedPath, logger)
		},
	}
	cmd.Flags().StringVar(&seedPath, "file", "configs/seed.yaml", "Seed file path")
	return cmd
}

func seed(ctx context.Context, app *core.App, path string, logger *zap.Logger) error {
	fixtures, err := core.LoadSeed(path)
	if err != nil {
		return err
	}
	n, err := core.Seed(ctx, app.Users, fixtures, app.Config.Auth.BcryptCost, logger)
	if err != nil {
		return err
	}
	logger.Info("users seeded", zap.Int("created", n), zap.Int("total", len(fixtures)))
	return nil
}
