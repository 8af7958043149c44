// Package main runs the wallet core daemon: it restores persisted state,
// wires the reconciliation engine and navigation guard, and serves the REST
// surface for the embedding shell.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/oysy/walletcore/internal/app"
	"github.com/oysy/walletcore/internal/app/httpapi"
	"github.com/oysy/walletcore/internal/app/storage"
	"github.com/oysy/walletcore/internal/config"
	"github.com/oysy/walletcore/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to wallet config file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	statePath := flag.String("state", "", "Path to the state database (overrides config)")
	flag.Parse()

	if v := os.Getenv("WALLET_CONFIG"); v != "" && *configPath == "" {
		*configPath = v
	}
	if v := os.Getenv("WALLET_ADDR"); v != "" && *addr == "" {
		*addr = v
	}
	if v := os.Getenv("WALLET_STATE_PATH"); v != "" && *statePath == "" {
		*statePath = v
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *statePath != "" {
		cfg.StatePath = *statePath
	}

	appLog := logger.New("walletd", cfg.LogLevel, os.Stderr)

	store, err := storage.OpenSQLite(cfg.StatePath)
	if err != nil {
		log.Fatalf("Failed to open state database: %v", err)
	}
	defer store.Close()

	application, err := app.New(app.Config{
		Store:             store,
		Routes:            cfg.Routes,
		LedgerURL:         cfg.Ledger.URL,
		GatewayURL:        cfg.Gateway.URL,
		ReconcileSchedule: cfg.ReconcileSchedule,
		Logger:            appLog,
	})
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.NewHandler(application),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		appLog.WithField("addr", cfg.ListenAddr).Info("wallet core listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Drain in-app events to the log; a real shell renders these instead.
	if application.Events != nil {
		go func() {
			for ev := range application.Events.Events() {
				appLog.WithField("kind", string(ev.Kind)).
					WithField("code", ev.Code).
					Info("event")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	appLog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Warn("HTTP shutdown failed")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		appLog.WithError(err).Warn("application stop failed")
	}
}
