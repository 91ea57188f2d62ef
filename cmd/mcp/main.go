package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tokenlens/internal/app"
	"tokenlens/internal/config"
	"tokenlens/internal/mcptools"
	"tokenlens/pkg/logger"
	"tokenlens/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	newLoggerFunc     = logger.NewStderr
	initTracerFunc    = tracing.InitTracer
	newAppFunc        = app.New
	runStdioFunc      = func(ctx context.Context, s *mcp.Server) error { return s.Run(ctx, &mcp.StdioTransport{}) }
	startHTTPFunc     = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPFunc  = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify = signal.Notify
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	// stdout carries the protocol on stdio; everything else logs to stderr.
	_ = loadEnvFunc()
	cfg, err := loadConfigFunc()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := newLoggerFunc(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	for _, w := range cfg.Warnings {
		zlog.Warn("config", zap.String("warning", w))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, "mcp")
	if err != nil {
		zlog.Fatal("failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			zlog.Warn("error shutting down tracer provider", zap.Error(err))
		}
	}()

	services := newAppFunc(ctx, cfg, tracer, zlog)
	defer func() {
		if err := services.Close(); err != nil {
			zlog.Warn("error closing services", zap.Error(err))
		}
	}()

	server := mcptools.NewServer(zlog.Named("mcp"), mcptools.Services{
		Tokens:    services.Orchestrator,
		Analysis:  services.Analysis,
		Portfolio: services.Portfolio,
		Market:    services.Market,
	}, time.Duration(cfg.MCPRequestTimeoutSecs)*time.Second)

	switch cfg.MCPTransport {
	case "http":
		serveHTTP(ctx, zlog, server, cfg.MCPHTTPAddr())
	default:
		zlog.Info("MCP server running on stdio")
		if err := runStdioFunc(ctx, server); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error("MCP stdio session ended", zap.Error(err))
		}
	}
	zlog.Info("MCP server exited")
}

func serveHTTP(ctx context.Context, zlog *zap.Logger, server *mcp.Server, addr string) {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		zlog.Info("MCP server listening", zap.String("addr", addr))
		if err := startHTTPFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	zlog.Info("shutting down MCP server")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	if err := shutdownHTTPFunc(srv, shutdownCtx); err != nil {
		zlog.Error("MCP server forced to shutdown", zap.Error(err))
	}
}
