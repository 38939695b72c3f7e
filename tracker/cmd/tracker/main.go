package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/gradtrack/gradtrack/tracker/internal/alerts"
	"github.com/gradtrack/gradtrack/tracker/internal/api"
	"github.com/gradtrack/gradtrack/tracker/internal/auth"
	"github.com/gradtrack/gradtrack/tracker/internal/config"
	"github.com/gradtrack/gradtrack/tracker/internal/history"
	"github.com/gradtrack/gradtrack/tracker/internal/receiver"
	"github.com/gradtrack/gradtrack/tracker/internal/refresh"
	"github.com/gradtrack/gradtrack/tracker/internal/shipper"
	"github.com/gradtrack/gradtrack/tracker/internal/store"
	"github.com/gradtrack/gradtrack/tracker/internal/ws"
)

const (
	historyPruneInterval = time.Hour
	shutdownTimeout      = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load env file", "path", *envFile, "err", err)
	}

	slog.Info("gradtrack starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(parseLevel(cfg.LogLevel))

	slog.Info("config loaded",
		"http_port", cfg.HTTPPort,
		"timezone", cfg.Location().String(),
		"boards", len(cfg.Boards),
		"refresh_interval", cfg.RefreshInterval,
		"auth_mode", cfg.Auth.Mode,
		"history", cfg.Storage.Backend,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, cfg, &level); err != nil {
		slog.Error("gradtrack stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("gradtrack shut down")
}

func run(ctx context.Context, configPath string, cfg *config.Config, level *slog.LevelVar) error {
	// Latest pass per board with background TTL eviction.
	st := store.New(cfg.StoreTTL)
	alertEngine := alerts.New(cfg.Alerts)

	var hist *history.Store
	if cfg.Storage.Enabled() {
		h, err := history.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer h.Close()
		hist = h
		slog.Info("history enabled", "path", cfg.Storage.Path, "retention", cfg.Storage.Retention)
	}

	// The handler reads boards and the time zone through the refresher,
	// which does not exist yet; refresher is assigned below.
	var refresher *refresh.Refresher
	handler := api.New(api.Deps{
		Store:    st,
		Alerts:   alertEngine,
		History:  hist,
		Boards:   func() []config.Board { return refresher.Boards() },
		Location: func() *time.Location { return refresher.Location() },
	})
	hub := ws.New(handler, cfg.BroadcastInterval)

	opts := []receiver.Option{receiver.WithAlerts(alertEngine), receiver.WithNotifier(hub)}
	var ship *shipper.Shipper
	if hist != nil {
		ship = shipper.New(hist, shipper.DefaultBufferSize)
		opts = append(opts, receiver.WithShipper(ship))
	}
	rec := receiver.New(st, opts...)

	refresher = refresh.New(rec, cfg.Boards, cfg.Location())
	if len(refresher.Boards()) == 0 {
		slog.Warn("no boards configured; the dashboard will stay empty")
	}

	apiAuth := auth.APIKey(cfg.Auth.Mode, cfg.Auth.EffectiveHeader(), cfg.Auth.Key())
	mux := http.NewServeMux()
	mux.Handle("/api/", apiAuth(handler))
	mux.Handle("/ws/stream", hub)
	mux.Handle("/", handler)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		st.Run(gctx)
		return nil
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		refresher.Run(gctx, cfg.RefreshInterval)
		return nil
	})
	if ship != nil {
		g.Go(func() error {
			ship.Run(gctx)
			return nil
		})
		g.Go(func() error {
			hist.RunPruner(gctx, cfg.Storage.Retention, historyPruneInterval)
			return nil
		})
	}

	// Hot reload swaps boards (with their time zone) and the log level. Port,
	// auth, storage and alert rules need a restart.
	g.Go(func() error {
		err := config.Watch(gctx, configPath, func(updated *config.Config) {
			level.Set(parseLevel(updated.LogLevel))
			removed := refresher.Reload(updated.Boards, updated.Location())
			for _, id := range removed {
				st.Delete(id)
				alertEngine.Forget(id)
			}
			slog.Info("config hot-reloaded", "boards", len(updated.Boards), "removed", removed)
			go refresher.RefreshAll(gctx)
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("gradtrack shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})

	return g.Wait()
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
