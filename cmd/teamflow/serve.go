package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"teamflow/internal/auth"
	"teamflow/internal/config"
	"teamflow/internal/server"
	"teamflow/internal/service"
	"teamflow/internal/storage/sqlite"
)

func serveCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and serve the web app",
		Long: `Start the TeamFlow server.

Settings come from TEAMFLOW_* environment variables, optionally loaded from an
env file. Flags override them.

Examples:
  teamflow serve
  teamflow serve --addr :9090 --db /var/lib/teamflow/teamflow.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr, _ = flags.GetString("addr")
			}
			if flags.Changed("db") {
				cfg.DBPath, _ = flags.GetString("db")
			}
			if flags.Changed("static") {
				cfg.StaticDir, _ = flags.GetString("static")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&envFile, "config", "", "env file to load (default .env)")
	cmd.Flags().String("addr", ":8080", "HTTP listen address")
	cmd.Flags().String("db", "data/teamflow.db", "path to sqlite database file")
	cmd.Flags().String("static", "web/dist", "directory with the built frontend")
	return cmd
}

func runServe(cfg *config.Config, out io.Writer) error {
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	logger.Info("TeamFlow "+Version, slog.String("environment", cfg.Environment))

	store, err := sqlite.Open(cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("unable to open database: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	revoker := auth.NewRevoker(ctx, cfg.RedisURL, logger)
	if closer, ok := revoker.(io.Closer); ok {
		defer closer.Close()
	}
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL, revoker)

	svc := service.New(store, nil, logger)
	srv := server.New(svc, tokens, logger, server.Options{
		StaticDir:    cfg.StaticDir,
		CookieSecure: cfg.CookieSecure,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err, ok := <-serveErr:
		if ok {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return nil
}
