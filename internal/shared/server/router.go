package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	googleauth "docrequests-backend/internal/auth"
	"docrequests-backend/internal/clients"
	"docrequests-backend/internal/docrequests"
	"docrequests-backend/internal/rms"
	"docrequests-backend/internal/services/health"
	"docrequests-backend/internal/shared/config"
	"docrequests-backend/internal/shared/metrics"
	"docrequests-backend/internal/shared/server/middleware"
	"docrequests-backend/internal/shared/server/respond"
	"docrequests-backend/internal/shared/server/views"
)

// RouterDeps carries the handlers mounted by NewRouter. GoogleAuth and Limiter
// are optional.
type RouterDeps struct {
	Config         config.Config
	Sessions       sessions.Store
	RMHandler      *rms.Handler
	ClientHandler  *clients.Handler
	RequestHandler *docrequests.Handler
	GoogleAuth     *googleauth.GoogleService
	Health         *health.Service
	Limiter        middleware.Limiter
	RateLimitRules map[string]middleware.RateLimitRule
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	views.Install(r)

	store := deps.Sessions
	if store == nil {
		store = middleware.NewCookieStore(deps.Config.SessionSecret, deps.Config.Env == "production")
	}
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.Sessions(store),
	)

	rules := deps.RateLimitRules
	if rules == nil {
		rules = middleware.DefaultRateLimitRules()
	}
	limits := middleware.RateLimitConfig{Rules: rules, Limiter: deps.Limiter}

	r.GET("/healthz", func(c *gin.Context) {
		status, ok := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
	r.GET("/metrics", metrics.Handler())

	if deps.RMHandler != nil {
		deps.RMHandler.RegisterRoutes(r, middleware.RateLimit(limits, middleware.GroupLogin))
	}
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(r)
	}
	if deps.ClientHandler != nil {
		deps.ClientHandler.RegisterPublicRoutes(r, middleware.RateLimit(limits, middleware.GroupVerify))
	}
	if deps.RequestHandler != nil {
		deps.RequestHandler.RegisterPublicRoutes(r, middleware.RateLimit(limits, middleware.GroupUpload))
	}

	rm := r.Group("", middleware.RequireRM())
	if deps.ClientHandler != nil {
		deps.ClientHandler.RegisterRoutes(rm)
	}
	if deps.RequestHandler != nil {
		deps.RequestHandler.RegisterRoutes(rm)
	}

	r.NoRoute(respond.NotFound)
	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
