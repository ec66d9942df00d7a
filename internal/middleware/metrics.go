package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/postop-monitor/pkg/metrics"
)

// Metrics records request counts and latency by route template, so ids in
// the path do not create new series
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPLatency.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
