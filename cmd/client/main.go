package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/world"
	"github.com/zeusync/noodles/internal/injector"
	"github.com/zeusync/noodles/sdk/go/client"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to $NOODLES_CONFIG)")
	statsEvery := flag.Duration("stats", 30*time.Second, "interval between replica stats logs, 0 disables")
	flag.Parse()

	app, cleanup, err := injector.InitializeApp(injector.ConfigPath(*configPath))
	if err != nil {
		fmt.Println("Error initializing client:", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := app.Logger
	if addr := app.Config.GetMetricsAddr(); addr != "" {
		srv := serveMetrics(addr, logger)
		defer func() { _ = srv.Close() }()
	}

	app.Client.OnEvent(client.EventTypeUnavailable, func(e client.Event) error {
		logger.Error("Server unavailable, connect again to retry", log.Error(e.Error))
		return nil
	})
	app.Client.OnEvent(client.EventTypeDocumentInitialized, func(client.Event) error {
		logger.Info("Document initialized")
		return nil
	})

	if err := app.Client.Connect(ctx); err != nil {
		logger.Error("Failed to connect", log.Error(err))
		return
	}

	if *statsEvery > 0 {
		go logStats(ctx, app.Client, logger, *statsEvery)
	}

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := app.Client.Disconnect(shutdownCtx); err != nil {
		logger.Warn("Disconnect failed", log.Error(err))
	}
}

func serveMetrics(addr string, logger log.Log) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Serving metrics", log.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", log.Error(err))
		}
	}()
	return srv
}

func logStats(ctx context.Context, c *client.Client, logger log.Log, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var stats world.Stats
			if err := c.Do(ctx, func(w *world.World) { stats = w.Stats() }); err != nil {
				return
			}
			logger.Info("Replica stats",
				log.Stringer("state", c.State()),
				log.Int("entities", stats.Entities),
				log.Int("geometries", stats.Geometries),
				log.Int("materials", stats.Materials),
				log.Int("buffers", stats.Buffers),
				log.Int("pending_invokes", stats.Pending))
		}
	}
}
