package main

import (
	"context"
	"os"
	"testing"
	"time"

	"tokenlens/internal/app"
	"tokenlens/internal/config"

	"github.com/charmbracelet/ssh"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func TestMainBootstrap(t *testing.T) {
	restore := stubSSHDeps(t)
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func TestAuthOptionBuildsForBothModes(t *testing.T) {
	open := authOption(&config.Config{}, zap.NewNop())
	if open == nil {
		t.Fatal("expected public key auth option")
	}
	restricted := authOption(&config.Config{SSHAuthorizedKeysPath: "testdata/authorized_keys"}, zap.NewNop())
	if restricted == nil {
		t.Fatal("expected authorized keys option")
	}
}

func stubSSHDeps(t *testing.T) func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origNewLogger := newLoggerFunc
	origInitTracer := initTracerFunc
	origNewApp := newAppFunc
	origNewWishServer := newWishServerFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() (*config.Config, error) {
		return &config.Config{
			SSHPort:        2222,
			SSHHostKeyPath: t.TempDir() + "/host_key",
			HTTPTimeout:    time.Second,
			Warnings:       []string{"ALCHEMY_API_KEY not set"},
		}, nil
	}
	newLoggerFunc = func(string) (*zap.Logger, error) { return zap.NewNop(), nil }
	initTracerFunc = func(ctx context.Context, component string) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newAppFunc = func(ctx context.Context, cfg *config.Config, tracer trace.Tracer, logger *zap.Logger) *app.App {
		return app.New(ctx, cfg, tracer, logger)
	}
	newWishServerFunc = func(ops ...ssh.Option) (*ssh.Server, error) {
		return nil, nil
	}
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		newLoggerFunc = origNewLogger
		initTracerFunc = origInitTracer
		newAppFunc = origNewApp
		newWishServerFunc = origNewWishServer
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
	}
}
