package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Checker reports whether one dependency is usable
type Checker interface {
	PingContext(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) PingContext(ctx context.Context) error { return f(ctx) }

type Handler struct {
	checks  map[string]Checker
	timeout time.Duration
}

// NewHandler builds the probes; checks are keyed by dependency name
func NewHandler(checks map[string]Checker) *Handler {
	return &Handler{
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health/live", h.LivenessCheck)
	r.GET("/health/ready", h.ReadinessCheck)
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check.PingContext(ctx); err != nil {
			failed[name] = "unavailable"
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "DOWN",
			"checks": failed,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}
