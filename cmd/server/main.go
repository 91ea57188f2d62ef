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
	"tokenlens/internal/bot"
	"tokenlens/internal/config"
	"tokenlens/internal/handler"
	"tokenlens/internal/job"
	"tokenlens/pkg/logger"
	"tokenlens/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "tokenlens/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	newLoggerFunc          = logger.New
	initTracerFunc         = tracing.InitTracer
	newAppFunc             = app.New
	newPricePollerFunc     = job.NewPricePoller
	startPollerFunc        = func(p *job.PricePoller, ctx context.Context) { go p.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.New
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Tokenlens API
// @version         1.0
// @description     Multi-source token price aggregation with portfolio reporting.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
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

	tp, tracer, err := initTracerFunc(ctx, "server")
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

	// Background refresh, stopped by ctx cancel.
	poller := newPricePollerFunc(tracer, zlog.Named("poller"), services.Market, services.Orchestrator, cfg.CoinGeckoPollSecs)
	startPollerFunc(poller, ctx)

	if err := startTelegramBotFunc(zlog.Named("telegram"), cfg.TelegramBotToken, &bot.Commands{
		Market:    services.Market,
		Tokens:    services.Orchestrator,
		Portfolio: services.Portfolio,
	}); err != nil {
		zlog.Error("telegram bot disabled", zap.Error(err))
	}

	h := newHandlerFunc(tracer, services.Orchestrator, services.Analysis, services.Portfolio, services.Market, services.GeckoTerminal)

	r := newRouterFunc()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(tracing.ServiceName))
	r.Use(handler.RequestID())
	r.Use(handler.RequestLogger(zlog.Named("http")))
	r.Use(handler.CORS(cfg.CORSOrigins))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: r,
	}

	go func() {
		zlog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	zlog.Info("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server exiting")
}
