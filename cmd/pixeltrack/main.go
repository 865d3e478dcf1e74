package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pixelfly/pixeltrack/internal/api"
	"github.com/pixelfly/pixeltrack/internal/config"
	"github.com/pixelfly/pixeltrack/internal/dedup"
	"github.com/pixelfly/pixeltrack/internal/dispatch"
	"github.com/pixelfly/pixeltrack/internal/metrics"
	"github.com/pixelfly/pixeltrack/internal/storage"
)

var version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "pixeltrack",
		Short: "PixelTrack — server-side purchase tracking relay with delayed COD events",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(statsCmd(&configPath))
	rootCmd.AddCommand(pendingCmd(&configPath))
	rootCmd.AddCommand(fireCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the PixelTrack server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("database migrations completed")

			metrics.Register()

			client := dispatch.NewHTTPClient(cfg.PixelFly)
			if !client.Enabled() {
				log.Warn().Msg("no PixelFly API key configured, server-side tracking is inert")
			}

			dispatcher := dispatch.NewDispatcher(cfg.Delayed, cfg.PixelFly.EventLogging, store, client, log)
			guard := dedup.NewGuard(store)

			server := api.NewServer(cfg.Server, dispatcher, guard, log)
			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			log.Info().
				Str("version", version).
				Int("port", cfg.Server.Port).
				Strs("delay_methods", cfg.Delayed.PaymentMethods).
				Strs("fire_on", cfg.Delayed.FireOnStatuses).
				Msg("PixelTrack is running")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down...")

			if err := server.Shutdown(10 * time.Second); err != nil {
				log.Error().Err(err).Msg("server shutdown error")
			}

			log.Info().Msg("PixelTrack stopped")
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			log.Info().Msg("migrations completed successfully")
			return nil
		},
	}
}

func statsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show delayed event statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, cleanup, err := setupFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := store.GetEventStats(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			out, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func pendingCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending delayed events",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			store, _, cleanup, err := setupFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			events, err := store.ListPendingEvents(context.Background(), limit, 0)
			if err != nil {
				return fmt.Errorf("failed to list pending events: %w", err)
			}

			if len(events) == 0 {
				fmt.Println("No pending events.")
				return nil
			}

			for _, ev := range events {
				fmt.Printf("  %s  order #%d  (created %s)\n", ev.ID, ev.OrderID, ev.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 50, "maximum events to list")
	return cmd
}

func fireCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fire [event_id]",
		Short: "Fire a pending event (or all with --all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if !all && len(args) < 1 {
				return fmt.Errorf("usage: pixeltrack fire <event_id> | pixeltrack fire --all")
			}

			_, dispatcher, cleanup, err := setupFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			if all {
				fired, failed, err := dispatcher.FireAll(context.Background())
				if err != nil {
					return fmt.Errorf("bulk fire failed: %w", err)
				}
				fmt.Printf("Fired %d events, %d failed\n", fired, failed)
				return nil
			}

			fired, err := dispatcher.FireEvent(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("fire failed: %w", err)
			}
			if !fired {
				return fmt.Errorf("event %s not fired: missing, already fired, or send failed", args[0])
			}
			fmt.Printf("Fired event %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "fire all pending events")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("PixelTrack v%s\n", version)
		},
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func setupStorage(cfg config.StorageConfig, log zerolog.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case "sqlite":
		log.Info().Str("path", cfg.SQLite.Path).Msg("using SQLite storage")
		return storage.NewSQLite(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func setupFromConfig(configPath string) (storage.Storage, *dispatch.Dispatcher, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg.Logging)
	store, err := setupStorage(cfg.Storage, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	client := dispatch.NewHTTPClient(cfg.PixelFly)
	dispatcher := dispatch.NewDispatcher(cfg.Delayed, cfg.PixelFly.EventLogging, store, client, log)

	return store, dispatcher, func() { store.Close() }, nil
}
