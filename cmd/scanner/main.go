package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"token_scanner/internal/app"
	"token_scanner/internal/client"
	"token_scanner/internal/domain"
	"token_scanner/internal/engine"
	"token_scanner/internal/infra"
	"token_scanner/internal/server"
	"token_scanner/internal/stream"

	"golang.org/x/sync/errgroup"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	configPath := os.Getenv("SCANNER_CONFIG")
	if configPath == "" {
		configPath = infra.DefaultConfigPath
	}

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()
	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// 4. Background icon warm-up
	clientFilter := domain.ScannerFilter{Chain: cfg.Client.Chain}
	g.Go(func() error {
		if err := bootstrap.WarmIcons(gctx, clientFilter, cfg.Client.Pages); err != nil {
			slog.Warn("Icon warm-up failed", slog.Any("error", err))
		}
		return nil
	})

	// 5. Sequencer (single writer of the token state)
	reducer := engine.NewReducer(engine.ReducerConfig{
		LiquidityDrift: cfg.Scanner.LiquidityDrift,
		HistoryWindow:  cfg.Scanner.HistoryWindow,
	}, time.Now)
	seq := engine.NewSequencer(cfg.Client.InboxSize, reducer, bootstrap.Metrics, bootstrap.View.Publish)
	bootstrap.View.StartStateProcessor(gctx)
	g.Go(func() error {
		seq.Run(gctx)
		return nil
	})
	slog.InfoContext(ctx, "✅ Sequencer started")

	// 6. Server (snapshot generator + per-session stream schedulers)
	srv := server.New(server.Options{
		ListenAddr: cfg.Server.ListenAddr,
		Seed:       bootstrap.Seed,
		Stream: stream.Config{
			Interval:   cfg.Scanner.Interval,
			MaxStagger: cfg.Scanner.MaxStagger,
			StatsEvery: cfg.Scanner.StatsEvery,
			FastTiming: cfg.Scanner.FastTiming,
			FastFactor: cfg.Scanner.FastFactor,
		},
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
		SendQueue: cfg.Server.SendQueue,
	}, bootstrap.Generator, bootstrap.View, bootstrap.Storage, bootstrap.Icons, bootstrap.Metrics)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	// 7. Stream consumer
	if cfg.Client.Enabled {
		var worker domain.StreamWorker = client.NewWorker(client.Options{
			URL:           cfg.Client.WSURL,
			Filter:        clientFilter,
			Pages:         cfg.Client.Pages,
			RefreshSpec:   cfg.Client.RefreshSpec,
			AutoSubscribe: true,
		}, seq, bootstrap.Metrics)
		if err := worker.Connect(gctx); err != nil {
			slog.Error("Failed to start stream client", slog.Any("error", err))
		} else {
			g.Go(func() error {
				<-gctx.Done()
				worker.Disconnect()
				return nil
			})
			slog.InfoContext(ctx, "✅ Stream client started", slog.String("url", cfg.Client.WSURL))
		}
	}

	slog.InfoContext(ctx, "✨ Token scanner fully operational. Press Ctrl+C to exit.")

	if err := g.Wait(); err != nil {
		slog.Error("Service stopped with error", slog.Any("error", err))
	}
	slog.Info("👋 Shutting down gracefully...")
}
