package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"atelier.dev/internal/app"
	"atelier.dev/internal/config"
	"atelier.dev/internal/httpapi"
	"atelier.dev/internal/obs"
)

// Overridden at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = ""
	commit  = ""
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if version != "" {
		cfg.App.Version = version
	}
	if commit != "" {
		cfg.App.Commit = commit
	}

	logger, err := obs.InitLogger(app.LogConfig(cfg))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.InitBuildInfo(cfg.App.Version, cfg.App.Commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("bootstrap failed", zap.Error(err))
	}
	defer func() { _ = deps.Close() }()

	probe := httpapi.ReadyProbe{DB: deps.DB}
	api := httpapi.New(probe, deps.Service, httpapi.Options{
		Version:            cfg.App.Version,
		Commit:             cfg.App.Commit,
		SecureCookies:      cfg.Production(),
		CORSOrigins:        cfg.HTTP.CORSOrigins,
		LoginRateBurst:     cfg.HTTP.LoginRateBurst,
		LoginRatePerSecond: cfg.HTTP.LoginRatePerSecond,
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
		AdminUserTypeID:    cfg.Auth.AdminUserTypeID,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	grpcServer := grpc.NewServer()
	httpapi.NewGRPCServer(probe).Register(grpcServer)
	grpcLis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Fatal("grpc listen", zap.String("addr", cfg.Server.GRPCAddr), zap.Error(err))
	}

	errc := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", cfg.App.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	go func() {
		logger.Info("grpc listening", zap.String("addr", cfg.Server.GRPCAddr))
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		logger.Error("server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	logger.Info("stopped")
}
