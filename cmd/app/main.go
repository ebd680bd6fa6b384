package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"token_vote/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()
	cfg := bootstrap.Config

	// 2. Pprof Server (for performance profiling)
	if cfg.Server.PprofAddr != "" {
		go func() {
			slog.Info("🕵️ Pprof server started", slog.String("addr", cfg.Server.PprofAddr))
			if err := http.ListenAndServe(cfg.Server.PprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap.CheckLedger(ctx)

	// 4. Background Asset Sync
	go bootstrap.SyncAssets(ctx)

	// 5. Session loop, wallet watcher and websocket hub
	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		bootstrap.Session.Run(ctx)
	}()
	go bootstrap.Watcher.Run(ctx)
	go bootstrap.Hub.Run(ctx)
	go func() {
		if _, err := bootstrap.Session.Restore(ctx); err != nil {
			slog.Warn("⚠️ Could not restore last selection", slog.Any("error", err))
		}
	}()
	slog.InfoContext(ctx, "✅ Session started")

	// 6. HTTP API
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           bootstrap.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", slog.Any("error", err))
			stop()
		}
	}()

	slog.InfoContext(ctx, "✨ Token Vote fully operational. Press Ctrl+C to exit.", slog.String("addr", cfg.Server.Addr))

	// Wait for shutdown signal
	<-ctx.Done()

	slog.Info("👋 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", slog.Any("error", err))
	}
	<-sessionDone
}
