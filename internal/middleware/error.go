package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/postop-monitor/pkg/errors"
	"github.com/jwalitptl/postop-monitor/pkg/httputil"
)

// ErrorHandler answers requests whose handler recorded errors with c.Error
// but wrote no response
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		for _, e := range c.Errors {
			log.Debug().
				Err(e.Err).
				Str("request_id", c.GetString(ContextRequestID)).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}

		last := c.Errors.Last()
		if _, ok := apperrors.As(last.Err); ok {
			httputil.RespondWithError(c, last.Err)
			return
		}
		if last.IsType(gin.ErrorTypeBind) {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid request", last.Err))
			return
		}
		httputil.RespondWithError(c, last.Err)
	}
}
