package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/infra/config"
	"github.com/silver1334/lianxin/internal/infra/database"
	"github.com/silver1334/lianxin/internal/infra/events"
	kafkainfra "github.com/silver1334/lianxin/internal/infra/kafka"
	"github.com/silver1334/lianxin/internal/infra/logger"
	redisinfra "github.com/silver1334/lianxin/internal/infra/redis"
	"github.com/silver1334/lianxin/internal/infra/security"
	"github.com/silver1334/lianxin/internal/infra/sms"
	postgresrepo "github.com/silver1334/lianxin/internal/repository/postgres"
	redisrepo "github.com/silver1334/lianxin/internal/repository/redis"
	"github.com/silver1334/lianxin/internal/transport/http/middleware"
	"github.com/silver1334/lianxin/internal/transport/http/routes"
	"github.com/silver1334/lianxin/internal/usecase"
)

// Application owns the process-level resources and the HTTP server.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

// New builds the full object graph from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	cipher, err := security.NewFieldCipher(cfg.Security.EncryptionSecret)
	if err != nil {
		return nil, fmt.Errorf("init field cipher: %w", err)
	}

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	issuer, err := security.NewTokenIssuer(security.TokenIssuerConfig{
		Issuer:          cfg.App.Name,
		AccessSecret:    cfg.JWT.AccessSecret,
		RefreshSecret:   cfg.JWT.RefreshSecret,
		ResetSecret:     cfg.JWT.ResetSecret,
		AccessTokenTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTokenTTL: cfg.JWT.RefreshTokenTTL,
		ResetTokenTTL:   cfg.JWT.ResetTokenTTL,
		ClockTolerance:  cfg.JWT.ClockTolerance,
	})
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	identity := security.NewIdentityHasher(cfg.Security.PhoneHashSecret)
	tokens := security.NewTokenSource()
	policy := security.DefaultPasswordValidator()

	repos := postgresrepo.NewRepositories(pool, cipher)
	txManager := postgresrepo.NewTxManager(pool, repos)

	challengeStore := redisrepo.NewOTPChallengeStore(redisClient.Client(), cfg.Redis.OTPPrefix)
	rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitTTL(cfg.RateLimit.WindowDuration, cfg.OTP.SendWindow),
	})
	revocationStore := redisrepo.NewSessionRevocationStore(redisClient.Client(), cfg.Redis.SessionRevocationPrefix)
	cache := redisrepo.NewCache(redisClient.Client(), "lianxin:cache")

	bus := events.NewBus(log)

	var producer *kafkainfra.Producer
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("kafka unavailable, domain events stay in process", zap.Error(err))
		} else {
			kafkainfra.NewEventRelay(producer, cfg.App.Name, cfg.App.Env, log).Attach(bus)
			log.Info("kafka event relay attached", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	}

	ports := repos.Ports()
	sender := sms.NewLogSender(log)

	otpService := usecase.NewOTPService(
		challengeStore, rateLimitStore, sender, ports.Accounts, identity, tokens, bus, log)
	registrationService := usecase.NewRegistrationService(
		txManager, otpService, hasher, policy, identity, issuer, bus, log)
	authService := usecase.NewAuthService(
		txManager, ports.Accounts, ports.Sessions, ports.LoginAudit,
		hasher, identity, issuer, revocationStore, bus, log)
	passwordService := usecase.NewPasswordService(
		txManager, ports.Accounts, ports.Sessions, otpService,
		hasher, policy, identity, issuer, revocationStore, cache, bus, log)
	accountService := usecase.NewAccountAdminService(
		txManager, ports.Accounts, ports.Sessions, revocationStore, issuer, bus, log)

	rateLimiter := middleware.NewRateLimiter(
		rateLimitStore, cfg.RateLimit.WindowDuration, cfg.RateLimit.LoginMaxAttempts, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		TokenIssuer: issuer,
		Revocations: revocationStore,
		RateLimiter: rateLimiter,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			OTP:          otpService,
			Registration: registrationService,
			Auth:         authService,
			Passwords:    passwordService,
			Accounts:     accountService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down cleanly.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		_ = a.redis.Close()
	}()
	if a.producer != nil {
		defer func() {
			_ = a.producer.Close()
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting identity API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// rateLimitTTL keeps sliding-window entries long enough to cover the widest
// configured window.
func rateLimitTTL(windows ...time.Duration) time.Duration {
	ttl := 2 * time.Hour
	for _, w := range windows {
		if 2*w > ttl {
			ttl = 2 * w
		}
	}
	return ttl
}
