package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/postop-monitor/internal/middleware"
	"github.com/jwalitptl/postop-monitor/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// RootHandler mounts routes outside /api
type RootHandler interface {
	RegisterRoutes(gin.IRoutes)
}

type RouterConfig struct {
	RateLimit      rate.Limit
	RateBurst      int
	CORSConfig     middleware.CORSConfig
	RequestTimeout time.Duration
	MaxBodySize    int64
	Validation     middleware.ValidationConfig
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	public  []Handler
	secured []Handler
	root    []RootHandler
}

func NewRouter(config RouterConfig, auth *middleware.AuthMiddleware, m *metrics.Metrics) *Router {
	engine := gin.New()

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		middleware.Validation(config.Validation),
		middleware.Metrics(m),
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
	)

	if config.MaxBodySize > 0 {
		engine.Use(middleware.SizeLimit(config.MaxBodySize))
	}
	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}
	if config.RequestTimeout > 0 {
		engine.Use(middleware.Timeout(config.RequestTimeout))
	}

	return &Router{engine: engine, auth: auth}
}

// Public registers handlers that need no token
func (r *Router) Public(h ...Handler) *Router {
	r.public = append(r.public, h...)
	return r
}

// Secured registers handlers behind JWT authentication
func (r *Router) Secured(h ...Handler) *Router {
	r.secured = append(r.secured, h...)
	return r
}

// Root registers unauthenticated probes such as health and metrics
func (r *Router) Root(h ...RootHandler) *Router {
	r.root = append(r.root, h...)
	return r
}

func (r *Router) Setup() *gin.Engine {
	for _, h := range r.root {
		h.RegisterRoutes(r.engine)
	}

	api := r.engine.Group("/api")
	for _, h := range r.public {
		h.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	for _, h := range r.secured {
		h.RegisterRoutes(protected)
	}

	return r.engine
}
