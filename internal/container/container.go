package container

import (
	"context"
	"fmt"
	"time"

	"voting-platform/internal/config"
	"voting-platform/internal/realtime"
	"voting-platform/internal/repository"
	"voting-platform/internal/service"
	"voting-platform/internal/service/auth"
	"voting-platform/pkg/database"
	"voting-platform/pkg/logger"
	"voting-platform/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           *database.PostgresDB
	RedisClient  *redis.Client
	Hub          *realtime.Hub
	Bridge       *realtime.RedisBridge
	Repositories *repository.Repositories
	Services     *service.Services
}

// New creates a new dependency injection container.
// Without DATABASE_URL the in-memory repositories are used; without REDIS_URL caching is off.
func New(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DB = db

		if cfg.MigrateOnStart {
			if err := migrate(ctx, db, logger); err != nil {
				db.Close()
				return nil, err
			}
		}

		c.Repositories = &repository.Repositories{
			Poll: repository.NewPollRepository(db.Pool),
			User: repository.NewUserRepository(db.Pool),
		}
		logger.Info("Using PostgreSQL repositories")
	} else {
		c.Repositories = &repository.Repositories{
			Poll: repository.NewMemoryPollRepository(),
			User: repository.NewMemoryUserRepository(),
		}
		logger.Warn("DATABASE_URL not configured, using in-memory repositories")
	}

	if cfg.SeedSamples {
		n, err := repository.SeedSamplePolls(ctx, c.Repositories.Poll, time.Now().UTC())
		if err != nil {
			c.Close()
			return nil, err
		}
		logger.WithField("polls", n).Info("Sample polls seeded")
	}

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, logger.Logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Redis client, proceeding without caching")
		} else {
			c.RedisClient = client
			logger.Info("Redis client initialized successfully")
		}
	} else {
		logger.Info("Redis URL not configured, proceeding without caching")
	}

	c.Hub = realtime.NewHub(logger.Logger)
	if c.RedisClient != nil {
		c.Bridge = realtime.NewRedisBridge(c.RedisClient, c.Hub)
		c.Hub.SetPublisher(c.Bridge)
	}

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}

	cache := service.NewPollCache(c.RedisClient, cfg.PollCacheTTL, logger.Logger)

	c.Services = &service.Services{
		Auth:  auth.NewService(c.Repositories.User, tokens, cfg.OwnerEmail, logger),
		Polls: service.NewPollService(c.Repositories, cache, c.Hub, cfg.PollHorizon, logger.Logger),
		Users: service.NewUserService(c.Repositories.User, logger.Logger),
	}

	return c, nil
}

func migrate(ctx context.Context, db *database.PostgresDB, logger *logger.Logger) error {
	migrator, err := database.NewMigrator(db.Pool)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer migrator.Close()

	applied, err := migrator.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.WithField("applied", applied).Info("Database migrations up to date")
	return nil
}

// Start runs the websocket hub, and the Redis relay when Redis is available, until ctx ends
func (c *Container) Start(ctx context.Context) {
	go c.Hub.Run(ctx)

	if c.Bridge != nil {
		go func() {
			if err := c.Bridge.Run(ctx); err != nil {
				c.Logger.WithError(err).Error("Poll event relay stopped")
			}
		}()
	}
}

// Close releases the database pool and the Redis connection
func (c *Container) Close() {
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.WithError(err).Warn("Failed to close Redis connection")
		}
		c.RedisClient = nil
	}
	if c.DB != nil {
		c.DB.Close()
		c.DB = nil
	}
}

// GetAuthService returns the auth service
func (c *Container) GetAuthService() service.AuthService {
	return c.Services.Auth
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// HasDatabase returns true when PostgreSQL backs the repositories
func (c *Container) HasDatabase() bool {
	return c.DB != nil
}
