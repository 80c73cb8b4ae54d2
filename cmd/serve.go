package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/fusion-batch/internal/database"
	"github.com/kozaktomas/fusion-batch/internal/video"
	"github.com/kozaktomas/fusion-batch/internal/web"
	"github.com/kozaktomas/fusion-batch/internal/web/handlers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Fusion Batch web server.
The server accepts batches over HTTP, runs them one at a time in submission
order and streams their progress as server-sent events.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (defaults to WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (defaults to WEB_HOST or 0.0.0.0)")
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	cfg := rt.cfg
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	// Keep the interfaces nil, not typed nil pointers, when history is off.
	var (
		writer database.RunWriter
		reader database.RunReader
	)
	if store := rt.openHistory(); store != nil {
		defer store.Close()
		writer, reader = store, store
		fmt.Println("Run history enabled")
	}

	executor := handlers.NewExecutor(rt.client, rt.catalog, rt.ffmpeg(), video.DefaultSettings(), writer, logger)
	server := web.NewServer(cfg, executor, reader, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start returns as soon as the listener closes; the running batch is still
	// cleaning up until Shutdown returns.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	}()

	fmt.Printf("Starting Fusion Batch on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-stopped
	return nil
}
