// Entry point for the sparfuchs offer assistant — chi HTTP API, optional
// MCP over stdio.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mhaberkorn/sparfuchs/assistant"
	"github.com/mhaberkorn/sparfuchs/catalog"
	"github.com/mhaberkorn/sparfuchs/embed"
	"github.com/mhaberkorn/sparfuchs/querylog"
	"github.com/mhaberkorn/sparfuchs/recommend"
	"github.com/mhaberkorn/sparfuchs/regions"
	"github.com/mhaberkorn/sparfuchs/scrape"
	"github.com/mhaberkorn/sparfuchs/textgen"
	"github.com/mhaberkorn/sparfuchs/vecstore"
)

func main() {
	// Local development secrets; absence is fine in production.
	_ = godotenv.Load()

	logLevel := env("LOG_LEVEL", "info")
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
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg, err := assistant.LoadConfig(env("CONFIG", "sparfuchs.yaml"))
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// Environment overrides for deployment secrets.
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		cfg.Qdrant.URL = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		cfg.Qdrant.APIKey = v
	}
	if v := os.Getenv("EMBED_ENDPOINT"); v != "" {
		cfg.Embed.Endpoint = v
	}
	if v := os.Getenv("TEXTGEN_ENDPOINT"); v != "" {
		cfg.TextGen.Endpoint = v
	}
	if v := os.Getenv("TEXTGEN_API_KEY"); v != "" {
		cfg.TextGen.APIKey = v
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Vector store: Qdrant when configured, in-memory otherwise.
	var store vecstore.Store
	if cfg.Qdrant.URL != "" {
		cfg.Qdrant.Logger = logger
		store = vecstore.NewQdrant(cfg.Qdrant)
		slog.Info("vector store: qdrant", "url", cfg.Qdrant.URL)
	} else {
		store = vecstore.NewMemory()
		slog.Warn("vector store: in-memory, catalog is not persistent")
	}

	cfg.Embed.Logger = logger
	embedder := embed.New(cfg.Embed)

	cfg.TextGen.Logger = logger
	gen := textgen.New(cfg.TextGen)

	cfg.Catalog.Logger = logger
	cat := catalog.New(store, embedder, cfg.Catalog)

	cfg.Regions.Logger = logger
	reg := regions.New(store, cfg.Regions)

	cfg.Recommend.Logger = logger
	retriever := recommend.NewRetriever(store, embedder, cfg.Catalog.Collection, logger)
	rec := recommend.New(retriever, gen, cfg.Recommend)

	cfg.Scrape.Logger = logger
	browser := scrape.NewBrowser(cfg.Scrape)
	defer browser.Close()
	scrapers := []scrape.Scraper{scrape.NewRewe(browser), scrape.NewAldi(browser)}

	qlog, err := querylog.Open(env("QUERYLOG_DB", cfg.QueryLogPath))
	if err != nil {
		slog.Error("query log", "error", err)
		os.Exit(1)
	}
	defer qlog.Close()

	svc := assistant.New(reg, cat, rec, scrapers, qlog, logger)

	// Optional MCP over stdio; the HTTP API keeps running alongside.
	if env("MCP_TRANSPORT", "") == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "sparfuchs",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)

		go func() {
			transport := &mcp.IOTransport{Reader: os.Stdin, Writer: os.Stdout}
			session, err := mcpSrv.Connect(ctx, transport, nil)
			if err != nil {
				slog.Error("MCP connect", "error", err)
				return
			}
			slog.Info("MCP stdio session started")
			if err := session.Wait(); err != nil && ctx.Err() == nil {
				slog.Error("MCP session", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           assistant.Routes(svc),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr)
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
