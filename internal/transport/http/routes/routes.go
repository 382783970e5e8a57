package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/silver1334/lianxin/internal/core/port"
	"github.com/silver1334/lianxin/internal/infra/config"
	"github.com/silver1334/lianxin/internal/infra/security"
	"github.com/silver1334/lianxin/internal/transport/http/handlers"
	"github.com/silver1334/lianxin/internal/transport/http/middleware"
	"github.com/silver1334/lianxin/internal/usecase"
)

// adminRole grants access to the moderation endpoints.
const adminRole = "admin"

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	OTP          *usecase.OTPService
	Registration *usecase.RegistrationService
	Auth         *usecase.AuthService
	Passwords    *usecase.PasswordService
	Accounts     *usecase.AccountAdminService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Services    ServiceSet
	TokenIssuer *security.TokenIssuer
	Revocations port.SessionRevocationStore
	RateLimiter *middleware.RateLimiter
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))

	authRequired := middleware.RequireAuth(deps.TokenIssuer, deps.Revocations)
	adminOnly := middleware.RequireRole(adminRole)
	limit := func(scope string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return deps.RateLimiter.Limit(scope)
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Ready)

	api := r.Group("/api/v1")
	{
		otpHandler := handlers.NewOTPHandler(deps.Services.OTP, deps.Logger)
		registrationHandler := handlers.NewRegistrationHandler(deps.Services.Registration, deps.Logger)
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Logger)
		passwordHandler := handlers.NewPasswordHandler(deps.Services.Passwords, deps.Logger)
		sessionHandler := handlers.NewSessionHandler(deps.Services.Accounts, deps.Logger)
		accountHandler := handlers.NewAccountHandler(deps.Services.Accounts, deps.Logger)
		adminHandler := handlers.NewAdminHandler(deps.Services.Accounts, deps.Logger)

		authGroup := api.Group("/auth")
		authGroup.POST("/otp/send", limit("otp_send"), otpHandler.Send)
		authGroup.POST("/otp/verify", limit("otp_verify"), otpHandler.Verify)
		authGroup.POST("/register", limit("register"), registrationHandler.Register)
		authGroup.POST("/login", limit("login"), authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authRequired, authHandler.Logout)
		authGroup.POST("/logout-all", authRequired, authHandler.LogoutAll)

		passwordGroup := api.Group("/password")
		passwordGroup.POST("/change", authRequired, passwordHandler.Change)
		passwordGroup.POST("/reset/request", limit("password_reset"), passwordHandler.RequestReset)
		passwordGroup.POST("/reset/confirm", limit("password_reset"), passwordHandler.ConfirmReset)

		sessionGroup := api.Group("/sessions")
		sessionGroup.GET("", authRequired, sessionHandler.List)

		accountGroup := api.Group("/account")
		accountGroup.Use(authRequired)
		accountGroup.POST("/deactivate", accountHandler.Deactivate)
		accountGroup.POST("/delete", accountHandler.ScheduleDeletion)

		adminGroup := api.Group("/admin/accounts")
		adminGroup.Use(authRequired, adminOnly)
		adminGroup.POST("/:id/suspend", adminHandler.Suspend)
		adminGroup.POST("/:id/unsuspend", adminHandler.Unsuspend)
		adminGroup.POST("/:id/unlock", adminHandler.Unlock)
		adminGroup.GET("/:id/sessions", adminHandler.ListSessions)
	}

	return r
}
