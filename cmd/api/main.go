package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jschappet/heron/internal/auth"
	"github.com/jschappet/heron/internal/config"
	"github.com/jschappet/heron/internal/host"
	"github.com/jschappet/heron/internal/httpapi"
	"github.com/jschappet/heron/internal/obs"
	"github.com/jschappet/heron/internal/store/pg"
	"github.com/jschappet/heron/internal/token"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := obs.Init(cfg.Environment); err != nil {
		log.Fatalf("init logging: %v", err)
	}
	defer obs.Sync()
	obs.InitMetrics()
	obs.InitBuildInfo(version, commit)

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		obs.L().Fatal("open db", zap.Error(err))
	}
	defer store.Close()

	sessions := auth.NewSessions(cfg.SessionSecret, cfg.SessionName, cfg.SessionMaxAge, cfg.SecureCookies)
	authn := auth.NewAuthenticator(sessions, store.DB())
	tokens := token.NewService(store.DB())
	resolver := host.NewResolver(store.DB())

	api := httpapi.New(store, tokens, sessions, authn, resolver, httpapi.Options{
		Version:        version,
		VerifyTokenTTL: cfg.VerifyTokenTTL,
		ResetTokenTTL:  cfg.ResetTokenTTL,
		EmailTokenTTL:  cfg.EmailTokenTTL,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	obs.L().Info("starting heron-api",
		zap.String("version", version),
		zap.String("addr", cfg.Addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.L().Fatal("listen", zap.Error(err))
		}
	}()

	var (
		grpcSrv  interface{ GracefulStop() }
		stopPoll func()
	)
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			obs.L().Fatal("grpc listen", zap.Error(err))
		}
		server, stop := httpapi.NewGRPCHealthServer(store.Ping, 10*time.Second)
		grpcSrv, stopPoll = server, stop
		go func() {
			if err := server.Serve(lis); err != nil {
				obs.L().Error("grpc serve", zap.Error(err))
			}
		}()
		obs.L().Info("grpc health listening", zap.String("addr", cfg.GRPCAddr))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.L().Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if grpcSrv != nil {
		stopPoll()
		grpcSrv.GracefulStop()
	}
	obs.L().Info("stopped")
}
