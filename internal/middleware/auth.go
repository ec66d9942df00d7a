package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/postop-monitor/internal/model"
	apperrors "github.com/jwalitptl/postop-monitor/pkg/errors"
	"github.com/jwalitptl/postop-monitor/pkg/httputil"
)

const ContextUser = "current_user"

var (
	errMissingAuthHeader = errors.New("missing authorization header")
	errInvalidAuthFormat = errors.New("invalid authorization format")
)

// Authenticator resolves a bearer token to a user
type Authenticator interface {
	Authenticate(token string) (model.CurrentUser, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Authenticate verifies the JWT and stores the caller in the context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(errMissingAuthHeader))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(errInvalidAuthFormat))
			return
		}

		user, err := m.auth.Authenticate(parts[1])
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Set(ContextUser, user)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed
func (m *AuthMiddleware) RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized(nil))
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		httputil.RespondWithError(c, apperrors.Forbidden("permission denied"))
	}
}

// CurrentUser returns the authenticated caller
func CurrentUser(c *gin.Context) (model.CurrentUser, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return model.CurrentUser{}, false
	}
	user, ok := v.(model.CurrentUser)
	return user, ok
}
