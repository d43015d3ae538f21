// Command homescript starts the HomeScript automation service: the HTTP
// surface (§6), the event-trigger engine (C5), and graceful shutdown,
// wired the way the upstream app's App.Start does it (signal channel +
// context.WithTimeout), adapted from one flow-driven gin.Engine to
// HomeScript's fixed route set.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kwld/homescript/authn"
	"github.com/kwld/homescript/config"
	"github.com/kwld/homescript/httpapi"
	"github.com/kwld/homescript/ratelimit"
	"github.com/kwld/homescript/runner"
	"github.com/kwld/homescript/script"
	"github.com/kwld/homescript/trigger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store := script.NewInMemoryStore()
	if seedPath := os.Getenv("SCRIPTS_SEED_FILE"); seedPath != "" {
		if err := script.LoadSeed(seedPath, store); err != nil {
			logger.Error("failed to load scripts seed file", "path", seedPath, "error", err)
		}
	}
	run := runner.New(cfg, store, logger)

	auth := authn.New(cfg.JWTSecret, serviceKeysFromEnv())
	limiter := ratelimit.New(5, 10)
	debugAccess := httpapi.NewDebugAccess(debugCIDRsFromEnv(), debugServiceIDsFromEnv())

	server := httpapi.NewServer(store, run, cfg, auth, limiter, debugAccess, logger)

	gin.SetMode(gin.ReleaseMode)
	g := gin.Default()
	server.Mount(g)

	httpServer := &http.Server{Addr: ":" + cfg.Port, Handler: g}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := trigger.New(os.Getenv("HA_URL_WS"), cfg.HAToken, store, runner.NewTriggerDispatcher(run, logger), logger)
	go engine.Start(ctx)

	go func() {
		logger.Info("homescript listening", "port", cfg.Port, "mock", cfg.Mock)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	engine.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "error", err)
	}
}

func serviceKeysFromEnv() []string {
	return splitNonEmpty(os.Getenv("SERVICE_KEYS"))
}

func debugCIDRsFromEnv() []string {
	return splitNonEmpty(os.Getenv("DEBUG_ACCESS_CIDRS"))
}

func debugServiceIDsFromEnv() []string {
	return splitNonEmpty(os.Getenv("DEBUG_ACCESS_SERVICE_IDS"))
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
