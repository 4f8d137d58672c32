/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/seckatie/echoes/internal/core"
	"github.com/seckatie/echoes/internal/core/config"
	"github.com/seckatie/echoes/internal/core/notify"
	"github.com/seckatie/echoes/internal/core/resurrect"
	"github.com/seckatie/echoes/internal/core/store"
	"github.com/seckatie/echoes/internal/core/wayback"
	"github.com/seckatie/echoes/internal/core/web"
	"github.com/seckatie/echoes/internal/logging"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "echoes",
	Short: "Resurrect dead websites from the Wayback Machine and talk to their ghosts",
	Long: `echoes looks a URL up in the Wayback Machine CDX index, stores a
resurrection record for it and gives the site a voice derived from the era
of its oldest capture.

Run without a subcommand it serves the HTTP API and the websocket channel
that announces completed resurrections.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(cmd); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file (defaults to $ECHOES_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("variant", "wrapped", "Archive URL variant: wrapped or identity")

	rootCmd.Flags().IntP("port", "p", 3001, "Port to listen on")
	rootCmd.Flags().String("host", "localhost", "Host to listen on")
	rootCmd.Flags().String("completion-mode", "deferred", "When resurrections complete: deferred or immediate")
	rootCmd.Flags().String("store", "memory", "Record store backend: memory or sqlite")
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := initLogger(cmd, cfg)

	st, err := store.Open(cfg.Store.Driver)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()
	if s, ok := st.(interface{ SetLogger(*slog.Logger) }); ok {
		s.SetLogger(logger)
	}

	origins := cfg.Origins()
	hub := notify.NewHub(
		notify.WithBufferSize(cfg.Notify.BufferSize),
		notify.WithOriginPatterns(web.OriginPatterns(origins)...),
		notify.WithLogger(logger),
	)

	// Completions are broadcast to every connected client
	st.RegisterEventListener(store.OnResurrectionCompletedEvent, hub.Listener())
	st.RegisterEventListener(store.OnResurrectionCreatedEvent, func(event store.Event) error {
		ev := event.(store.ResurrectionCreatedEvent)
		logger.Debug("resurrection stored", "id", ev.Record.ID, "url", ev.Record.URL)
		return nil
	})

	service := resurrect.New(newIndex(cfg, logger), st, resurrect.Options{
		Mode:   cfg.Resurrect.CompletionMode,
		Delay:  cfg.Resurrect.CompletionDelay,
		Logger: logger,
	})
	defer service.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("resurrection engine starting",
		"addr", cfg.Addr(),
		"completion_mode", service.Mode(),
		"store", cfg.Store.Driver,
		"variant", cfg.Archive.Variant)

	preview := core.PreviewOptions{
		Timeout:         cfg.Preview.Timeout,
		MaxResourceSize: cfg.Preview.MaxResourceSize,
	}
	inline := core.DefaultInlineOptions("")
	inline.Timeout = cfg.Preview.Timeout
	inline.MaxResourceSize = cfg.Preview.MaxResourceSize

	return web.StartServer(ctx, cfg.Addr(), service, hub, web.Options{
		AllowedOrigins:  origins,
		Preview:         preview,
		Inline:          inline,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          logger,
	})
}

// loadConfig reads the config file and environment, then applies any flag
// the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to read --config: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("variant") {
		cfg.Archive.Variant, _ = flags.GetString("variant")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("completion-mode") {
		cfg.Resurrect.CompletionMode, _ = flags.GetString("completion-mode")
	}
	if flags.Changed("store") {
		cfg.Store.Driver, _ = flags.GetString("store")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger installs the process logger on the command's error stream.
func initLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	return logger
}

func newIndex(cfg config.Config, logger *slog.Logger) *wayback.Client {
	return wayback.New(wayback.Options{
		Endpoint:        cfg.Archive.CDXEndpoint,
		SnapshotBaseURL: cfg.Archive.SnapshotBaseURL,
		Variant:         cfg.Archive.Variant,
		Limit:           cfg.Archive.Limit,
		Timeout:         cfg.Archive.Timeout,
		Logger:          logger,
	})
}
