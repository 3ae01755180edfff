package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/slotwatch/internal/api"
	"github.com/ashureev/slotwatch/internal/config"
	"github.com/ashureev/slotwatch/internal/feed"
	"github.com/ashureev/slotwatch/internal/health"
	"github.com/ashureev/slotwatch/internal/keepalive"
	"github.com/ashureev/slotwatch/internal/monitor"
	"github.com/ashureev/slotwatch/internal/registry"
	"github.com/ashureev/slotwatch/internal/store"
	"github.com/ashureev/slotwatch/internal/telegram"
)

const deployNotice = "🤖 Bot deployed. Send /start to begin."

func runServer(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return err
	}

	logger := newLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)
	slog.Info("Starting slotwatch",
		"version", version,
		"port", cfg.Port,
		"interval", cfg.CheckInterval,
		"slots", len(cfg.PortalSlots),
	)

	repo, err := store.NewSQLite(cfg.HistoryDBPath)
	if err != nil {
		return fmt.Errorf("initialize history database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	slog.Info("History database ready", "path", cfg.HistoryDBPath)

	bot, err := telegram.NewClient(cfg.BotToken,
		telegram.WithAPIURL(cfg.TelegramAPIURL),
		telegram.WithPollTimeout(cfg.TelegramPollTimeout),
		telegram.WithSendRate(cfg.TelegramSendRate),
		telegram.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	client, err := newPortalClient(cfg, logger)
	if err != nil {
		return err
	}

	reg := registry.New()
	if cfg.Owner.Enabled() {
		owner := cfg.OwnerSession()
		reg.Put(owner)
		slog.Info("Owner chat pre-seeded", "chat_id", owner.ChatID, "monitoring", owner.MonitoringEnabled, "courses", len(owner.WatchList))
	}

	hm := health.NewMonitor()
	hub := feed.NewHub()
	sched := monitor.New(monitor.Config{
		Interval:    cfg.CheckInterval,
		PollEvery:   cfg.PollEvery,
		IdleEvery:   cfg.IdleEvery,
		Concurrency: cfg.CheckConcurrency,
		AdminChatID: cfg.AdminChatID,
	}, reg, bot, client,
		monitor.WithHistory(repo),
		monitor.WithFeed(hub),
		monitor.WithHealth(hm),
		monitor.WithLogger(logger),
	)

	router := api.NewRouter(
		api.NewHandler(reg, sched, repo, hm, hub),
		api.NewHealthHandler(repo, hm),
		feed.NewWebSocketHandler(hub, cfg.AllowedOrigin),
		cfg.AdminToken,
	)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      0, // websocket feed is long-lived
		IdleTimeout:       120 * time.Second,
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartPruner(ctx, repo, cfg.HistoryRetention)
	if cfg.SelfPingURL != "" {
		keepalive.NewPinger(cfg.SelfPingURL, nil, logger).Start(ctx, cfg.SelfPingEvery)
	}

	if cfg.GRPCHealthPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
		if err != nil {
			return fmt.Errorf("listen grpc health: %w", err)
		}
		grpcHealth := api.NewGRPCHealth(hm)
		go func() {
			if err := grpcHealth.Serve(ctx, lis); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	if cfg.AdminChatID != "" {
		if err := bot.SendMessage(ctx, cfg.AdminChatID, deployNotice); err != nil {
			slog.Warn("Failed to send deploy notice", "error", err)
		}
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		_ = sched.Run(ctx)
	}()

	<-ctx.Done()
	stop()
	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		slog.Warn("Scheduler did not stop before shutdown deadline")
	}

	slog.Info("Server stopped successfully")
	return nil
}
