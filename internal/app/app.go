package app

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

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/workbridge/workbridge-auth/internal/config"
	"github.com/workbridge/workbridge-auth/internal/domain"
	"github.com/workbridge/workbridge-auth/internal/http/handler"
	"github.com/workbridge/workbridge-auth/internal/http/middleware"
	"github.com/workbridge/workbridge-auth/internal/http/router"
	"github.com/workbridge/workbridge-auth/internal/observability"
	"github.com/workbridge/workbridge-auth/internal/repository"
	"github.com/workbridge/workbridge-auth/internal/security"
	"github.com/workbridge/workbridge-auth/internal/service"
)

// App owns every long-lived component of the process.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Reaper        *service.TokenReaper
	Observability *observability.Runtime
	DB            *gorm.DB
	Redis         *redis.Client
}

// Build wires the whole service by hand: repositories over one gorm DB,
// services over the repositories, handlers over the services. Redis-backed
// pieces degrade to local equivalents when no REDIS_ADDR is configured.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	runtime, err := observability.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(
		&domain.Account{},
		&domain.Role{},
		&domain.RefreshToken{},
		&domain.VerificationToken{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	accountRepo := repository.NewAccountRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	verificationRepo := repository.NewVerificationTokenRepository(db)

	if err := roleRepo.Seed([]string{domain.RoleAdmin, domain.RoleServiceSeeker, domain.RoleServiceProvider}); err != nil {
		return nil, fmt.Errorf("seed roles: %w", err)
	}

	var redisClient *redis.Client
	var abuseGuard service.AuthAbuseGuard = service.NewNoopAuthAbuseGuard()
	var missCache service.MissCache = service.NewInMemoryMissCache()
	var authLimiter func(http.Handler) http.Handler
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		abuseGuard = service.NewRedisAuthAbuseGuard(redisClient, "auth_abuse", service.AuthAbusePolicy{})
		missCache = service.NewRedisMissCache(redisClient, "miss_cache")
		authLimiter = middleware.NewDistributedRateLimiter(
			middleware.NewRedisLimiter(redisClient, "rate_limit"),
			cfg.AuthRateLimitRPM, time.Minute, "auth",
		).Middleware()
	} else {
		authLimiter = middleware.NewRateLimiter(cfg.AuthRateLimitRPM, time.Minute).Middleware()
	}

	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTSecret)
	cookies := security.NewCookieWriter(cfg.CookieSecure)
	sender := service.NewLogSender(logger)

	verification := service.NewVerificationService(verificationRepo, sender, cfg.VerificationCodeTTL, logger)
	refresh := service.NewRefreshTokenService(refreshRepo, cfg.RefreshTokenTTL)
	resolver := service.NewPrincipalResolver(accountRepo, missCache, 30*time.Second)
	auth := service.NewAuthService(accountRepo, roleRepo, verification, refresh, resolver, jwtMgr, abuseGuard, cfg.AccessTokenTTL, logger)
	admin := service.NewAdminService(accountRepo, refresh, logger)
	reaper := service.NewTokenReaper(verificationRepo, cfg.ReaperInterval, logger)

	chat := handler.NewChatHandler(jwtMgr, resolver, handler.NewLoopbackRelay(logger), corsOriginCheck(cfg.CORSOrigins), logger)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:     handler.NewAuthHandler(auth, cookies, logger),
		MeHandler:       handler.NewMeHandler(),
		AdminHandler:    handler.NewAdminHandler(admin, logger),
		ChatHandler:     chat,
		JWTManager:      jwtMgr,
		Resolver:        resolver,
		CORSOrigins:     cfg.CORSOrigins,
		APIRateLimitRPM: cfg.APIRateLimitRPM,
		AuthRateLimiter: authLimiter,
		ReadyCheck:      readyCheck(db, redisClient),
		EnableOTelHTTP:  cfg.OTELTracingEnabled,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Reaper:        reaper,
		Observability: runtime,
		DB:            db,
		Redis:         redisClient,
	}, nil
}

// Run serves until a signal or a hard server error, then shuts everything
// down in order.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return a.Reaper.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if oerr := a.Observability.Shutdown(shutdownCtx); oerr != nil {
		a.Logger.Warn("observability shutdown", "error", oerr)
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	return err
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	switch cfg.DBDriver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DBDSN), gormCfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.DBDSN), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}

func corsOriginCheck(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

func readyCheck(db *gorm.DB, redisClient *redis.Client) func() error {
	return func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Ping(); err != nil {
			return err
		}
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return err
			}
		}
		return nil
	}
}
