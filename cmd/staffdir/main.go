package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/staffdir/staffdir/internal/app"
	"github.com/staffdir/staffdir/internal/audit"
	audithttp "github.com/staffdir/staffdir/internal/audit/http"
	"github.com/staffdir/staffdir/internal/auth"
	"github.com/staffdir/staffdir/internal/observability"
	"github.com/staffdir/staffdir/internal/platform/cache"
	"github.com/staffdir/staffdir/internal/platform/db"
	"github.com/staffdir/staffdir/internal/rbac"
	"github.com/staffdir/staffdir/internal/session"
	"github.com/staffdir/staffdir/internal/staff"
	"github.com/staffdir/staffdir/internal/users"
	"github.com/staffdir/staffdir/jobs"
)

func main() {
	if app.SkipStartup("server") {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig(".env")
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 {
		os.Exit(runCommand(ctx, cfg, logger, os.Args[1:]))
	}

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
	}

	var redisClient redis.UniversalClient
	if cfg.SessionBackend == app.SessionBackendRedis {
		client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		redisClient = client
	}

	metrics := observability.NewMetrics()
	sessionRepo, err := app.NewSessionRepository(cfg, pool, redisClient)
	if err != nil {
		return err
	}
	sessions := session.NewStore(sessionRepo, cfg.SessionTTL, session.WithLogger(logger))

	auditRepo := audit.NewRepository(pool)
	recorder := audit.NewRecorder(auditRepo, logger, metrics, cfg.AuditWriteTimeout)
	auditService := audit.NewService(auditRepo)

	hasher := auth.DefaultPasswordHasher()
	identities := auth.NewRepository(pool)
	authService, err := auth.NewService(identities, hasher, sessions, recorder, metrics, logger)
	if err != nil {
		return err
	}
	authenticator := auth.NewAuthenticator(sessions, identities, logger, metrics)
	guard := rbac.Middleware{Logger: logger, Metrics: metrics}

	usersService := users.NewService(users.NewRepository(pool), hasher, sessions, recorder, logger)
	if err := bootstrapAdmin(ctx, cfg, usersService, logger); err != nil {
		return err
	}
	staffService := staff.NewService(staff.NewRepository(pool), recorder)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Authenticator:      authenticator,
		RBACMiddleware:     guard,
		AuthHandler:        auth.NewHandler(logger, authService, authenticator, cfg.LoginRateLimit),
		PermissionsHandler: rbac.NewPermissionsHandler(),
		StaffHandler:       staff.NewHandler(logger, staffService, cfg.PINRateLimit),
		UsersHandler:       users.NewHandler(logger, usersService, guard),
		AuditHandler:       audithttp.NewHandler(logger, auditService),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
		AccessLog:          !cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("session_backend", cfg.SessionBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if cfg.SessionSweepInterval > 0 {
		sweeper := jobs.NewSessionSweepJob(sessions, logger, metrics)
		g.Go(func() error {
			return sweeper.Loop(gctx, cfg.SessionSweepInterval)
		})
	}
	return g.Wait()
}

func bootstrapAdmin(ctx context.Context, cfg *app.Config, svc *users.Service, logger *slog.Logger) error {
	if cfg.BootstrapAdminUsername == "" {
		return nil
	}
	created, err := svc.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		logger.Info("bootstrap super admin created", slog.String("username", cfg.BootstrapAdminUsername))
	}
	return nil
}

func openPool(ctx context.Context, cfg *app.Config) (*pgxpool.Pool, error) {
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}
