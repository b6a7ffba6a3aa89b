package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/lazypower/memorylayer/internal/metrics"
	"github.com/lazypower/memorylayer/internal/server"
	"github.com/lazypower/memorylayer/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logs, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer logs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	db, dbPath, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	eng, err := buildEngine(ctx, cfg, db, metrics.New(reg))
	if err != nil {
		return err
	}
	defer eng.Stop()
	if err := eng.StartMaintenance(cfg.Compaction.Schedule); err != nil {
		return err
	}

	// Vectors from an older model are re-embedded in the background.
	go func() {
		ectx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if n, err := eng.EmbedMissing(ectx); err != nil {
			slog.Warn("embed missing", "error", err)
		} else if n > 0 {
			slog.Info("embedded missing vectors", "count", n)
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server.New(eng, VersionString(), reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("memorylayer serving", "addr", httpServer.Addr, "db", dbPath)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(sctx)
}
