package alert

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/postop-monitor/internal/handler"
	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/pkg/httputil"
)

const defaultListLimit = 50

type Service interface {
	List(ctx context.Context, user model.CurrentUser, filter model.AlertFilter) ([]*model.Alert, error)
	Get(ctx context.Context, user model.CurrentUser, id uuid.UUID) (*model.Alert, error)
	Create(ctx context.Context, user model.CurrentUser, req *model.CreateAlertRequest) (*model.Alert, error)
	Acknowledge(ctx context.Context, user model.CurrentUser, id uuid.UUID) (*model.Alert, error)
	Resolve(ctx context.Context, user model.CurrentUser, id uuid.UUID, notes string) (*model.Alert, error)
	Escalate(ctx context.Context, user model.CurrentUser, id uuid.UUID, reason string) (*model.Alert, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	alerts := r.Group("/alert")
	{
		alerts.GET("", h.List)
		alerts.POST("", h.Create)
		alerts.GET("/:id", h.Get)
		alerts.PUT("/:id/acknowledge", h.Acknowledge)
		alerts.PUT("/:id/resolve", h.Resolve)
		alerts.PUT("/:id/escalate", h.Escalate)
	}
}

func (h *Handler) List(c *gin.Context) {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return
	}

	var q model.ListAlertsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handler.BindError(c, err)
		return
	}

	filter := toFilter(q)
	alerts, err := h.svc.List(c.Request.Context(), user, filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithPagination(c, alerts, filter.Limit, filter.Offset, len(alerts))
}

func (h *Handler) Get(c *gin.Context) {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	alert, err := h.svc.Get(c.Request.Context(), user, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, alert)
}

func (h *Handler) Create(c *gin.Context) {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return
	}

	var req model.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	alert, err := h.svc.Create(c.Request.Context(), user, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, alert)
}

func (h *Handler) Acknowledge(c *gin.Context) {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	alert, err := h.svc.Acknowledge(c.Request.Context(), user, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, alert)
}

func (h *Handler) Resolve(c *gin.Context) {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	// The body is optional
	var req model.ResolveAlertRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handler.BindError(c, err)
			return
		}
	}

	alert, err := h.svc.Resolve(c.Request.Context(), user, id, req.Notes)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, alert)
}

func (h *Handler) Escalate(c *gin.Context) {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req model.EscalateAlertRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handler.BindError(c, err)
			return
		}
	}

	alert, err := h.svc.Escalate(c.Request.Context(), user, id, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, alert)
}

func toFilter(q model.ListAlertsQuery) model.AlertFilter {
	filter := model.AlertFilter{
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	if filter.Limit == 0 {
		filter.Limit = defaultListLimit
	}
	if q.Status != "" {
		s := model.AlertStatus(q.Status)
		filter.Status = &s
	}
	if q.Severity != "" {
		s := model.Severity(q.Severity)
		filter.Severity = &s
	}
	if q.Type != "" {
		t := model.AlertType(q.Type)
		filter.Type = &t
	}
	if q.PatientID != "" {
		// validated by the binding tag
		if id, err := uuid.Parse(q.PatientID); err == nil {
			filter.PatientID = &id
		}
	}
	return filter
}
