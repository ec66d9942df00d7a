// Package handler holds helpers shared by the HTTP handler packages.
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/postop-monitor/internal/middleware"
	"github.com/jwalitptl/postop-monitor/internal/model"
	apperrors "github.com/jwalitptl/postop-monitor/pkg/errors"
	"github.com/jwalitptl/postop-monitor/pkg/httputil"
)

// CurrentUser returns the authenticated caller, answering 401 when the
// route was registered without the auth middleware
func CurrentUser(c *gin.Context) (model.CurrentUser, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
	}
	return user, ok
}

// UUIDParam parses the named path parameter, answering 400 when malformed
func UUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// BindError records a binding failure for the validation middleware
func BindError(c *gin.Context, err error) {
	_ = c.Error(err).SetType(gin.ErrorTypeBind)
}
