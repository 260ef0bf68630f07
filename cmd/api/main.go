package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/brunoSandoval210/authorization-service/internal/audit"
	"github.com/brunoSandoval210/authorization-service/internal/auth"
	"github.com/brunoSandoval210/authorization-service/internal/config"
	"github.com/brunoSandoval210/authorization-service/internal/httpapi"
	"github.com/brunoSandoval210/authorization-service/internal/obs"
	"github.com/brunoSandoval210/authorization-service/internal/store/memory"
	"github.com/brunoSandoval210/authorization-service/internal/store/pg"
	"github.com/brunoSandoval210/authorization-service/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

const (
	shutdownTimeout = 10 * time.Second
	healthInterval  = 10 * time.Second
)

type backingStore interface {
	auth.Store
	audit.Store
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authorization-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := obs.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	obs.SetLogger(logger)
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, probe, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	hasher, err := auth.NewHasher(auth.WithAlgorithm(cfg.PasswordHash), auth.WithBcryptCost(cfg.BcryptCost))
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}
	codec, err := auth.NewHMACCodec([]byte(cfg.JWTSecret), auth.WithCodecIssuer(cfg.JWTIssuer))
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}
	issuer, err := auth.NewTokenIssuer(codec, auth.WithTokenTTL(cfg.JWTTTL))
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}
	creds, err := auth.NewCredentialService(store, hasher, issuer,
		auth.WithLogger(logger),
		auth.WithLoginObserver(obs.LoginMetrics{}),
	)
	if err != nil {
		return err
	}
	rbac, err := auth.NewRBACService(store, hasher, logger)
	if err != nil {
		return err
	}

	feed := stream.New[audit.Entry]()
	api := httpapi.New(httpapi.Deps{
		RBAC:        rbac,
		Credentials: creds,
		Tokens:      auth.NewTokenValidator(codec, logger),
		Audit:       audit.NewRecorder(store, audit.WithPublisher(feed)),
		Feed:        feed,
		Ready:       probe,
		Version:     version,
		LoginRate:   rate.Limit(cfg.LoginRate),
		LoginBurst:  cfg.LoginBurst,
		CORSOrigins: cfg.CORSAllowedOrigins,

		TrustedProxies: cfg.TrustedProxies,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	health := httpapi.NewHealthServer(probe)
	grpcServer := grpc.NewServer()
	health.Register(grpcServer)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc server starting", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		health.Sync(gctx)
		ticker := time.NewTicker(healthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				health.Sync(gctx)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (backingStore, httpapi.ReadyProbe, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		obs.Logger().Warn("using in-memory store; data is lost on restart")
		return memory.NewStore(), httpapi.ReadyProbe{}, func() {}, nil
	default:
		store, err := pg.Open(cfg.PGDSN)
		if err != nil {
			return nil, httpapi.ReadyProbe{}, nil, fmt.Errorf("open postgres: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			obs.Logger().Warn("postgres not reachable at startup", zap.Error(err))
		}
		return store, httpapi.ReadyProbe{Store: store}, func() { _ = store.Close() }, nil
	}
}
