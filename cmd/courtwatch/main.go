package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/courtwatch/courtwatch"
	"github.com/hazyhaar/courtwatch/snapstore"
	"github.com/hazyhaar/courtwatch/warehouse"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"
)

func main() {
	logLevel := env("LOG_LEVEL", "info")
	mcpTransport := env("MCP_TRANSPORT", "")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := courtwatch.LoadConfig(env("CONFIG", ""))
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	cfg.DataDir = env("DATA_DIR", cfg.DataDir)
	cfg.WarehousePath = env("WAREHOUSE_DB", cfg.WarehousePath)
	if port := os.Getenv("PORT"); port != "" {
		cfg.Listen = ":" + port
	}

	wh, err := warehouse.Open(cfg.WarehousePath)
	if err != nil {
		slog.Error("warehouse", "error", err)
		os.Exit(1)
	}
	defer wh.Close()

	store := snapstore.NewFS(cfg.DataDir)
	svc := courtwatch.New(store, wh, cfg, logger)

	// MCP over stdio replaces the HTTP server entirely.
	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "courtwatch",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			slog.Error("mcp stdio", "error", err)
			os.Exit(1)
		}
		return
	}

	// Optional periodic ingestion sweep over incoming/ for all endpoints.
	if interval, err := time.ParseDuration(env("INGEST_INTERVAL", "")); err == nil && interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := svc.IngestAll(ctx); err != nil && ctx.Err() == nil {
						slog.Error("ingest sweep", "error", err)
					}
				}
			}
		}()
		slog.Info("ingest sweep enabled", "interval", interval)
	}

	// HTTP server.
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           svc.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
