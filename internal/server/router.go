package server

import (
	"context"
	"net/http"

	"github.com/abduss/mediadrive/internal/auth"
	"github.com/abduss/mediadrive/internal/config"
	"github.com/abduss/mediadrive/internal/gallery"
	"github.com/abduss/mediadrive/internal/guard"
	"github.com/abduss/mediadrive/internal/logger"
	"github.com/abduss/mediadrive/internal/metrics"
	"github.com/abduss/mediadrive/internal/storage"
	"github.com/abduss/mediadrive/internal/workspace"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const signInPath = "/signin"

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config     config.Config
	Logger     *zap.Logger
	DB         Pinger
	Storage    storage.Gateway
	Auth       *auth.Gateway
	Workspaces *workspace.Registry

	// StorageCheck reports whether the object store is reachable. Nil skips
	// the storage readiness check.
	StorageCheck func(ctx context.Context) error
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Storage == nil {
		deps.Storage = storage.Unconfigured{}
	}

	router := gin.New()
	if err := router.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		deps.Logger.Warn("invalid trusted proxies; trusting none", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(logger.Recovery(deps.Logger))
	router.Use(logger.Middleware())
	router.Use(logger.RequestLogger(deps.Logger, "/health/live", "/health/ready"))
	router.Use(metrics.Middleware())
	if origins := deps.Config.CORS.AllowedOrigins; len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", logger.CorrelationIDHeader},
			ExposeHeaders:    []string{logger.CorrelationIDHeader},
			AllowCredentials: true,
		}))
	}

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	env := newWorkspaceEnv(deps.Workspaces, deps.Auth, deps.Config.Session, deps.Logger)

	pages := router.Group("/")
	pages.Use(env.attach)
	registerViewRoutes(pages, env)

	api := router.Group("/v1")
	api.Use(env.attach)

	limiter := newRateLimiter(deps.Config.RateLimit)
	auth.RegisterRoutes(api, deps.Auth, env, limiter.middleware(), guard.Protect(env.guard, guard.API, signInPath))

	protected := api.Group("")
	protected.Use(guard.Protect(env.guard, guard.API, signInPath))
	gallery.RegisterRoutes(protected, env, deps.Config.Server.MaxUploadBytes)

	return router
}
