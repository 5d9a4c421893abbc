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

	"github.com/spf13/cobra"

	"portal-session/internal/di"
	"portal-session/internal/infrastructure/env"
)

const shutdownTimeout = 10 * time.Second

var (
	flagAddr      string
	flagHeadless  bool
	flagPortalURL string
)

var rootCmd = &cobra.Command{
	Use:   "portal-session",
	Short: "Remote browser session for BuckeyeLink schedule import",
	Long: `portal-session runs one remote Chromium session at a time, streams it to a web
client over a websocket so the student can sign in, then reads the class schedule.

Configuration comes from the environment and .env files; flags override it.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides HTTP_ADDR)")
	rootCmd.Flags().BoolVar(&flagHeadless, "headless", true, "run Chromium without a window (overrides BROWSER_HEADLESS)")
	rootCmd.Flags().StringVar(&flagPortalURL, "portal-url", "", "portal entry URL (overrides PORTAL_URL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg := di.LoadConfig(env.NewEnvService())
	if flagAddr != "" {
		cfg.HTTPAddr = flagAddr
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = flagHeadless
	}
	if flagPortalURL != "" {
		cfg.Session.PortalURL = flagPortalURL
	}

	container, err := di.NewContainer(cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	log := container.Logger

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("Server failed", "error", err)
			_ = container.Shutdown(context.Background())
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by the server; the
	// container closes them.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	return container.Shutdown(shutdownCtx)
}
