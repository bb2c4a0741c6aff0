package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	appAuth "github.com/kapwanet/exchange/internal/app/auth"
	appControllers "github.com/kapwanet/exchange/internal/app/controllers"
	appMigrations "github.com/kapwanet/exchange/internal/app/migrations"
	appRepos "github.com/kapwanet/exchange/internal/app/repositories"
	"github.com/kapwanet/exchange/internal/app/repositories/memory"
	"github.com/kapwanet/exchange/internal/app/repositories/postgres"
	appRoutes "github.com/kapwanet/exchange/internal/app/routes"
	appServices "github.com/kapwanet/exchange/internal/app/services"
	"github.com/kapwanet/exchange/internal/config"
	"github.com/kapwanet/exchange/internal/db"
	"github.com/kapwanet/exchange/internal/jobs"
	appMiddleware "github.com/kapwanet/exchange/internal/middleware"
	pkgAuth "github.com/kapwanet/exchange/internal/pkg/auth"
	"github.com/kapwanet/exchange/internal/pkg/locker"
	"github.com/kapwanet/exchange/internal/pkg/logger"
	"github.com/kapwanet/exchange/internal/pkg/metrics"
	"github.com/kapwanet/exchange/internal/seed"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	Store   appRepos.Store
	Redis   *redis.Client
	Metrics *metrics.Recorder

	Directory         appServices.Directory
	PostService       appServices.PostService
	MatchService      appServices.MatchService
	ThreadService     appServices.ThreadService
	ModerationService appServices.ModerationService

	JWTService     *pkgAuth.JWTService
	AuthzService   *appAuth.AuthorizationService
	AuthMiddleware *appMiddleware.AuthMiddleware
	Controllers    appRoutes.Controllers
	Scheduler      *jobs.Scheduler
	Logger         zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	lgr := logger.Configure(logger.Config{
		Level:  cfg.Logging.Level,
		Format: logger.Format(strings.ToLower(cfg.Logging.Format)),
	})
	lgr.Info().Str("logLevel", cfg.Logging.Level).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupStore opens the configured store. The postgres store is migrated before use.
func SetupStore(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (appRepos.Store, error) {
	if cfg.Database.Driver == config.DriverMemory {
		lgr.Warn().Msg("Using in-memory store, data is lost on restart")
		return memory.NewStore(), nil
	}

	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	lgr.Info().Msg("Running database migrations...")
	if err := appMigrations.NewMigrator(database.Pool, lgr).Migrate(ctx); err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		database.Close()
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	return postgres.NewStore(database), nil
}

// setupLocker returns the cross-instance post lock. Without Redis, cascades
// are serialized by the store's row locks alone.
func setupLocker(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (locker.Locker, *redis.Client, error) {
	if !cfg.Redis.Enabled {
		return locker.Noop{}, nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	lgr.Info().Str("addr", cfg.Redis.Addr).Msg("Redis post locker enabled")
	return locker.NewRedis(client, "exchange:"), client, nil
}

// BuildDependencies initializes services, controllers and background jobs on top of the store.
func BuildDependencies(ctx context.Context, cfg *config.Config, store appRepos.Store, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Store: store, Logger: lgr, Metrics: metrics.NewRecorder()}

	postLocker, redisClient, err := setupLocker(ctx, cfg, lgr)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to initialize post locker")
		return nil, err
	}
	deps.Redis = redisClient

	serviceDeps := appServices.Deps{
		Store:   store,
		Logger:  lgr,
		Metrics: deps.Metrics,
		Locker:  postLocker,
		LockTTL: cfg.LockTTL(),
	}
	deps.Directory = appServices.NewDirectory(serviceDeps)
	deps.PostService = appServices.NewPostService(serviceDeps)
	deps.MatchService = appServices.NewMatchService(serviceDeps)
	deps.ThreadService = appServices.NewThreadService(serviceDeps)
	deps.ModerationService = appServices.NewModerationService(serviceDeps)

	deps.AuthzService = appAuth.NewAuthorizationService(deps.Directory)
	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenExp: cfg.AccessTokenExpiration(),
		TokenIssuer:    cfg.JWT.Issuer,
	})
	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService, deps.AuthzService)

	deps.Controllers = appRoutes.Controllers{
		Auth:       appControllers.NewAuthController(deps.JWTService, lgr),
		Post:       appControllers.NewPostController(deps.PostService, deps.MatchService, deps.AuthzService, lgr),
		Match:      appControllers.NewMatchController(deps.MatchService, deps.AuthzService, lgr),
		Thread:     appControllers.NewThreadController(deps.ThreadService, deps.AuthzService, lgr),
		Moderation: appControllers.NewModerationController(deps.ModerationService, lgr),
	}

	if err := seed.CreateDefaultData(ctx, deps.Directory, cfg, lgr); err != nil {
		// Log the error but don't fail the startup
		lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
	}

	deps.Scheduler = jobs.NewScheduler(logger.Component("jobs"))
	if err := deps.Scheduler.AddSuspensionSweep(cfg.Jobs.SuspensionSweep, deps.ModerationService); err != nil {
		// the caller still owns the store
		if deps.Redis != nil {
			deps.Redis.Close()
		}
		return nil, fmt.Errorf("failed to schedule suspension sweep: %w", err)
	}

	return deps, nil
}

// Close releases the store and the Redis client
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	if d.Store != nil {
		d.Store.Close()
	}
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	development := strings.ToLower(cfg.Server.Mode) == "development"
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(gin.Recovery(), appMiddleware.RequestLogger(lgr))

	opts := appRoutes.Options{DevTokens: development}
	if cfg.Metrics.Enabled {
		opts.MetricsPath = cfg.Metrics.Path
		opts.MetricsHandler = deps.Metrics.Handler()
	}
	if development {
		lgr.Warn().Msg("Development token endpoint enabled")
	}

	appRoutes.SetupRouter(router, deps.Controllers, deps.AuthMiddleware, opts)
	return router
}
