package auth

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/postop-monitor/internal/handler"
	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/pkg/httputil"
)

type Service interface {
	Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, tokens)
}
