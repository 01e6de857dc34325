package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/najdeno/internal/api"
	"github.com/erazemk/najdeno/internal/config"
	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/disposal"
	"github.com/erazemk/najdeno/internal/metrics"
	"github.com/erazemk/najdeno/internal/store"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:          "najdeno",
	Short:        "Lost-and-found registry",
	SilenceUsage: true,
}

// loadConfig reads the configuration and sets up logging. The caller must
// call the returned cleanup function.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	closeLog, err := setupLogger(cfg.Server.LogPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closeLog, nil
}

func newScanner(cfg *config.Config, database *sql.DB) *disposal.Scanner {
	return &disposal.Scanner{
		DB:            database,
		RetentionDays: cfg.Disposal.RetentionDays,
		BatchSize:     cfg.Disposal.BatchSize,
		Interval:      time.Duration(cfg.Disposal.IntervalMinutes) * time.Minute,
	}
}

// newMetricsServer serves the Prometheus exposition at /metrics on addr.
func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the disposal scanner",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := loadConfig()
		if err != nil {
			return err
		}
		defer closeLog()

		database, err := openDatabase(cfg.Database.Path, cfg.Auth.AdminUser)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			return err
		}
		defer database.Close()

		slog.Info("database ready", "path", cfg.Database.Path)

		// Prefer the configured secret; otherwise use the one persisted on first run.
		jwtSecret := cfg.Auth.JWTSecret
		if jwtSecret == "" {
			jwtSecret, err = store.GetJWTSecret(context.Background(), database)
			if err != nil {
				slog.Error("failed to get JWT secret", "error", err)
				return err
			}
		}

		router := api.NewRouter(database, jwtSecret, api.Options{Documents: cfg.Documents.Enabled})

		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api.LoggingMiddleware(router),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		scannerDone := make(chan struct{})
		if cfg.Disposal.Enabled {
			go func() {
				defer close(scannerDone)
				newScanner(cfg, database).Run(ctx)
			}()
		} else {
			close(scannerDone)
			slog.Info("disposal scanner disabled")
		}

		var metricsServer *http.Server
		if cfg.Server.MetricsAddr != "" {
			metricsServer = newMetricsServer(cfg.Server.MetricsAddr)
			go func() {
				slog.Info("metrics listener started", "addr", cfg.Server.MetricsAddr)
				if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("metrics listener error", "error", err)
				}
			}()
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			sig := <-quit
			slog.Info("shutdown signal received", "signal", sig.String())
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("server forced to shutdown", "error", err)
			}
			if metricsServer != nil {
				metricsServer.Shutdown(shutdownCtx)
			}
		}()

		slog.Info("server started", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			return err
		}

		cancel()
		<-scannerDone
		slog.Info("server stopped, closing database")
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and the admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := loadConfig()
		if err != nil {
			return err
		}
		defer closeLog()

		path := cfg.Database.Path
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("database file %s already exists", path)
		}

		database, password, err := initDatabase(path, cfg.Auth.AdminUser)
		if err != nil {
			return err
		}
		database.Close()

		printInitResult(path, cfg.Auth.AdminUser, password)
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one auto-disposal cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := loadConfig()
		if err != nil {
			return err
		}
		defer closeLog()

		if _, err := os.Stat(cfg.Database.Path); err != nil {
			return fmt.Errorf("database %s: %w", cfg.Database.Path, err)
		}
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.CheckMigrations(database); err != nil {
			return fmt.Errorf("database not ready, run serve once to migrate: %w", err)
		}

		res, err := newScanner(cfg, database).RunOnce(cmd.Context())
		if err != nil {
			return fmt.Errorf("scanning: %w", err)
		}

		fmt.Printf("Examined: %d\n", res.Examined)
		fmt.Printf("Marked ready to dispose: %d\n", res.Marked)
		fmt.Printf("Failed: %d\n", res.Failed)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configPath); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		fmt.Printf("Configuration initialized at %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "najdeno.toml", "path to the TOML configuration file")

	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(configCmd)
}
