package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/platformlab/auth-service/config"
	"github.com/platformlab/auth-service/internal/container"
	pginfra "github.com/platformlab/auth-service/internal/infrastructure/postgres"
	"github.com/platformlab/auth-service/internal/interface/middleware"
	"github.com/platformlab/auth-service/internal/router"
	"github.com/platformlab/auth-service/pkg/events"
	"github.com/platformlab/auth-service/pkg/helpers"
	"github.com/platformlab/auth-service/pkg/ratelimit"
	"github.com/platformlab/auth-service/pkg/token"
	"github.com/platformlab/auth-service/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	// Postgres
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := runMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migration failed: %v", err)
	}

	// Redis backs the rate-limit counters; without it the limiter falls
	// back to per-instance in-memory windows.
	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()
	container.SetRateLimitStore(ratelimit.NewRedisStore(rdb))

	// Token signer/verifier. Only this process holds the private key; the
	// verifier is built from the public half.
	signer, err := buildSigner(cfg, logger)
	if err != nil {
		log.Fatalf("failed to init token signer: %v", err)
	}
	verifier := token.NewVerifier(signer.Public())

	// Lifecycle event pipeline
	broker, err := events.NewRabbitBroker(cfg.RabbitMQURL, cfg.EventsExchange)
	if err != nil {
		logger.WithError(err).Error("event broker unreachable, lifecycle events will be dropped")
	}
	dispatcher := events.NewDispatcher(brokerOrDiscard(broker), logger, events.DispatcherOptions{
		QueueSize:      cfg.EventQueueSize,
		Workers:        cfg.EventWorkers,
		MaxAttempts:    cfg.EventMaxAttempts,
		InitialBackoff: cfg.EventInitialBackoff,
	})
	defer func() {
		dispatcher.Close()
		if broker != nil {
			broker.Close()
		}
	}()

	// Provide infra singletons to container for registry auto-wiring
	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetPGPool(pool)
	container.SetRedis(rdb)
	container.SetSigner(signer)
	container.SetVerifier(verifier)
	container.SetDispatcher(dispatcher)

	// Gin engine and global middleware
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled || cfg.Env == "development" {
		r.Use(gin.Logger())
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Registry: auto-register modules using container
	reg := router.NewRegistry(r)
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info("server exited properly")
}

// buildSigner loads the configured Ed25519 key, generating an ephemeral one
// for development when none is set. Production refuses to start without a
// configured key: ephemeral keys would invalidate every outstanding token
// on restart.
func buildSigner(cfg *config.Config, logger *logrus.Logger) (*token.Signer, error) {
	if cfg.TokenSigningKey == "" {
		if cfg.Env == "production" {
			return nil, errors.New("TOKEN_SIGNING_KEY is required in production")
		}
		priv, encoded, err := token.GenerateSigningKey()
		if err != nil {
			return nil, err
		}
		logger.WithField("key", encoded).Warn("TOKEN_SIGNING_KEY not set, using ephemeral key")
		return token.NewSigner(priv, cfg.TokenIssuer, cfg.TokenTTL), nil
	}
	priv, err := token.DecodeSigningKey(cfg.TokenSigningKey)
	if err != nil {
		return nil, err
	}
	return token.NewSigner(priv, cfg.TokenIssuer, cfg.TokenTTL), nil
}

func brokerOrDiscard(b *events.RabbitBroker) events.Broker {
	if b == nil {
		return events.Discard{}
	}
	return b
}

func runMigrations(dsn string, migrationsDir string, logger *logrus.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsDir), "postgres", driver)
	if err != nil {
		return err
	}
	logger.Info("running migrations...")
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to run")
		return nil
	}
	return err
}
