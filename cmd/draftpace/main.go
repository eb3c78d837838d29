package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"

	"github.com/draftpace/draftpace/internal/alerts"
	"github.com/draftpace/draftpace/internal/api"
	"github.com/draftpace/draftpace/internal/auth"
	"github.com/draftpace/draftpace/internal/config"
	"github.com/draftpace/draftpace/internal/scheduler"
	"github.com/draftpace/draftpace/internal/shipper"
	"github.com/draftpace/draftpace/internal/store"
	"github.com/draftpace/draftpace/internal/telemetry"
	"github.com/draftpace/draftpace/internal/ws"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("draftpace starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	setLevel(&level, cfg.Log.Level)

	slog.Info("config loaded",
		"telemetry_source", cfg.Telemetry.Source,
		"tick_interval", cfg.Engine.TickInterval,
		"mode", cfg.Engine.Mode,
		"target", cfg.Engine.Target,
		"http_port", cfg.Server.HTTPPort,
		"kafka", cfg.Kafka.Enabled(),
		"alert_rules", len(cfg.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		slog.Error("failed to build telemetry provider", "source", cfg.Telemetry.Source, "err", err)
		os.Exit(1)
	}
	if c, ok := provider.(io.Closer); ok {
		defer c.Close()
	}

	// Output store with background TTL eviction.
	st := store.New(cfg.Server.SnapshotTTL)
	go st.Run(ctx)

	// Alert engine evaluates rules on every output.
	alertEngine := alerts.New(cfg.Alerts)

	sinks := []scheduler.Sink{st.Put, alertEngine.Evaluate}
	if cfg.Kafka.Enabled() {
		ship := shipper.New(cfg.Kafka)
		go ship.Run(ctx)
		sinks = append(sinks, ship.Ship)
		slog.Info("kafka sink enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	sched := scheduler.New(provider, cfg.Engine, cfg.Telemetry.Timeout, sinks...)
	sched.Start(ctx)

	// Hot-reload engine settings and log level. Source and server changes
	// need a restart.
	current := cfg.Reloadable()
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			next := updated.Reloadable()
			applyReload(sched, &level, current, next)
			current = next
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// WebSocket hub streams the latest output to UI clients.
	hub := ws.New(st, cfg.Server.StreamInterval)
	go hub.Run(ctx)

	control := auth.APIKeyMiddleware(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)

	// Combined HTTP server: REST API + WebSocket hub on HTTPPort.
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(st, sched, alertEngine, control))
	httpMux.Handle("/ws/stream", hub)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           handlers.RecoveryHandler()(handlers.LoggingHandler(os.Stdout, httpMux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("draftpace shutting down")
	sched.Stop()

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

// applyReload pushes changed engine settings into the running scheduler.
// Target and mode are queued and take effect on the next tick.
func applyReload(sched *scheduler.Scheduler, level *slog.LevelVar, prev, next config.Reloadable) {
	if next.LogLevel != prev.LogLevel {
		setLevel(level, next.LogLevel)
		slog.Info("config: log level changed", "level", next.LogLevel)
	}
	if next.Engine.TickInterval != prev.Engine.TickInterval {
		sched.SetInterval(next.Engine.TickInterval)
		slog.Info("config: tick interval changed", "interval", next.Engine.TickInterval)
	}
	if next.Engine.Mode != prev.Engine.Mode {
		if err := sched.SetMode(next.Engine.Mode); err != nil {
			slog.Warn("config: mode not applied", "err", err)
		}
	}
	// Only a changed target is applied, so a reload does not override a
	// selection made through the API.
	if next.Engine.Target != prev.Engine.Target {
		sched.SelectTarget(next.Engine.Target)
	}
}

func setLevel(lv *slog.LevelVar, level string) {
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		slog.Warn("unknown log level, keeping current", "level", level)
	}
}
