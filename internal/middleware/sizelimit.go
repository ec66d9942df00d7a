package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/postop-monitor/pkg/errors"
	"github.com/jwalitptl/postop-monitor/pkg/httputil"
)

// DefaultMaxBodySize covers every request body the API accepts
const DefaultMaxBodySize int64 = 64 << 10

// SizeLimit rejects declared oversize bodies up front and caps the rest
// while they are read
func SizeLimit(maxBodySize int64) gin.HandlerFunc {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBodySize {
			httputil.RespondWithError(c, &apperrors.AppError{
				Kind:    apperrors.KindPayloadTooLarge,
				Message: fmt.Sprintf("request body exceeds %d bytes", maxBodySize),
			})
			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
		}
		c.Next()
	}
}
