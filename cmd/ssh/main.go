package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"tokenlens/internal/app"
	"tokenlens/internal/config"
	"tokenlens/internal/tui"
	"tokenlens/pkg/logger"
	"tokenlens/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	gossh "golang.org/x/crypto/ssh"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	newLoggerFunc     = logger.New
	initTracerFunc    = tracing.InitTracer
	newAppFunc        = app.New
	newWishServerFunc = wish.NewServer
	setupSignalNotify = ossignal.Notify
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }
)

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

	tp, tracer, err := initTracerFunc(ctx, "ssh")
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

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.SSHPort)
	srv, err := newWishServerFunc(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		authOption(cfg, zlog),
		wish.WithMiddleware(
			bubbletea.Middleware(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
				model := tui.NewModel(tui.Services{
					Portfolio: services.Portfolio,
					Market:    services.Market,
					Symbols:   services.Market.TrackedSymbols(),
					Username:  s.User(),
				})
				pty, _, _ := s.Pty()
				model.SetSize(pty.Window.Width, pty.Window.Height)
				return model, []tea.ProgramOption{tea.WithAltScreen()}
			}),
			logging.Middleware(),
		),
	)
	if err != nil {
		zlog.Fatal("failed to create SSH server", zap.Error(err))
	}

	if srv != nil {
		go func() {
			zlog.Info("SSH server listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && err != ssh.ErrServerClosed {
				zlog.Error("SSH server stopped", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	zlog.Info("shutting down SSH server")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			zlog.Warn("SSH server shutdown error", zap.Error(err))
		}
	}

	zlog.Info("SSH server exited")
}

// authOption restricts logins to an authorized_keys file when one is
// configured. Without it every key is accepted and its fingerprint logged.
func authOption(cfg *config.Config, zlog *zap.Logger) ssh.Option {
	if cfg.SSHAuthorizedKeysPath != "" {
		return wish.WithAuthorizedKeys(cfg.SSHAuthorizedKeysPath)
	}
	return wish.WithPublicKeyAuth(func(ctx ssh.Context, key ssh.PublicKey) bool {
		zlog.Info("SSH auth accepted",
			zap.String("user", ctx.User()),
			zap.String("fingerprint", gossh.FingerprintSHA256(key)),
		)
		return true
	})
}
