package sensor

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/postop-monitor/internal/handler"
	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/service/ingest"
	sensorsvc "github.com/jwalitptl/postop-monitor/internal/service/sensor"
	apperrors "github.com/jwalitptl/postop-monitor/pkg/errors"
	"github.com/jwalitptl/postop-monitor/pkg/httputil"
)

type Service interface {
	Data(ctx context.Context, user model.CurrentUser, patientID uuid.UUID, q sensorsvc.DataQuery) ([]*model.VitalsReading, error)
	Latest(ctx context.Context, user model.CurrentUser, patientID uuid.UUID) (*model.VitalsReading, error)
	Analytics(ctx context.Context, user model.CurrentUser, patientID uuid.UUID, period string) (*model.VitalsAnalytics, error)
	Dashboard(ctx context.Context, user model.CurrentUser, patientID uuid.UUID) (*model.Dashboard, error)
	SubmitManual(ctx context.Context, user model.CurrentUser, req *model.ManualReadingRequest) (*ingest.Result, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	sensor := r.Group("/sensor")
	{
		sensor.GET("/data/:patientId", h.Data)
		sensor.GET("/latest/:patientId", h.Latest)
		sensor.GET("/analytics/:patientId", h.Analytics)
		sensor.GET("/dashboard/:patientId", h.Dashboard)
		sensor.POST("/manual", h.SubmitManual)
	}
}

type dataQuery struct {
	From  string `form:"from"`
	To    string `form:"to"`
	Limit int    `form:"limit" binding:"omitempty,min=1"`
}

type manualResponse struct {
	Reading    *model.VitalsReading `json:"reading"`
	Alerts     []*model.Alert       `json:"alerts"`
	Suppressed int                  `json:"suppressed"`
}

func (h *Handler) Data(c *gin.Context) {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	patientID, ok := handler.UUIDParam(c, "patientId")
	if !ok {
		return
	}

	var q dataQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handler.BindError(c, err)
		return
	}
	from, err := parseTime("from", q.From)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	to, err := parseTime("to", q.To)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	readings, err := h.svc.Data(c.Request.Context(), user, patientID, sensorsvc.DataQuery{
		From:  from,
		To:    to,
		Limit: q.Limit,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, readings)
}

func (h *Handler) Latest(c *gin.Context) {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	patientID, ok := handler.UUIDParam(c, "patientId")
	if !ok {
		return
	}

	reading, err := h.svc.Latest(c.Request.Context(), user, patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, reading)
}

func (h *Handler) Analytics(c *gin.Context) {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	patientID, ok := handler.UUIDParam(c, "patientId")
	if !ok {
		return
	}

	analytics, err := h.svc.Analytics(c.Request.Context(), user, patientID, c.Query("period"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, analytics)
}

func (h *Handler) Dashboard(c *gin.Context) {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return
	}
	patientID, ok := handler.UUIDParam(c, "patientId")
	if !ok {
		return
	}

	dashboard, err := h.svc.Dashboard(c.Request.Context(), user, patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, dashboard)
}

func (h *Handler) SubmitManual(c *gin.Context) {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return
	}

	var req model.ManualReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	result, err := h.svc.SubmitManual(c.Request.Context(), user, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	alerts := result.Created
	if alerts == nil {
		alerts = []*model.Alert{}
	}
	httputil.RespondWithCreated(c, manualResponse{
		Reading:    result.Reading,
		Alerts:     alerts,
		Suppressed: result.Suppressed,
	})
}

func parseTime(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, apperrors.BadRequest(name+" must be an RFC3339 timestamp", err)
	}
	t = t.UTC()
	return &t, nil
}
