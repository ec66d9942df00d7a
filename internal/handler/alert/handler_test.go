package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/postop-monitor/internal/middleware"
	"github.com/jwalitptl/postop-monitor/internal/model"
	"github.com/jwalitptl/postop-monitor/internal/repository/repotest"
	"github.com/jwalitptl/postop-monitor/internal/service/access"
	alertsvc "github.com/jwalitptl/postop-monitor/internal/service/alert"
	"github.com/jwalitptl/postop-monitor/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *struct{ Code int } `json:"error"`
}

type testAPI struct {
	router  *gin.Engine
	as      model.CurrentUser
	doctor  model.CurrentUser
	patient model.CurrentUser
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	cfg := middleware.DefaultValidationConfig()
	require.NoError(t, middleware.RegisterValidators(cfg))

	doctorID := uuid.New()
	patientID := uuid.New()
	users := repotest.NewUsers(&model.User{
		Base:             model.Base{ID: patientID},
		Role:             model.RolePatient,
		Status:           model.UserStatusActive,
		AssignedDoctorID: &doctorID,
	})

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := alertsvc.NewService(repotest.NewAlerts(), access.NewPolicy(users), logger.Nop()).
		WithClock(func() time.Time { return now })

	api := &testAPI{
		doctor:  model.CurrentUser{ID: doctorID, Role: model.RoleDoctor},
		patient: model.CurrentUser{ID: patientID, Role: model.RolePatient},
	}
	api.as = api.doctor

	r := gin.New()
	r.Use(middleware.ErrorHandler(), middleware.Validation(cfg))
	g := r.Group("/api", func(c *gin.Context) {
		c.Set(middleware.ContextUser, api.as)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(g)
	api.router = r
	return api
}

func (a *testAPI) makeRequest(t *testing.T, method, path string, body interface{}) (int, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (a *testAPI) createAlert(t *testing.T) model.Alert {
	t.Helper()

	code, resp := a.makeRequest(t, http.MethodPost, "/api/alert", map[string]interface{}{
		"patient_id": a.patient.ID,
		"type":       "vital_breach",
		"severity":   "high",
		"title":      "Heart rate above range",
	})
	require.Equal(t, http.StatusCreated, code)

	var created model.Alert
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	return created
}

func TestAlertLifecycle(t *testing.T) {
	api := newTestAPI(t)
	created := api.createAlert(t)
	assert.Equal(t, model.AlertStatusPending, created.Status)

	// List
	code, resp := api.makeRequest(t, http.MethodGet, "/api/alert?status=pending", nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Items      []model.Alert `json:"items"`
		Pagination struct {
			Limit int `json:"limit"`
			Count int `json:"count"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.Len(t, page.Items, 1)
	assert.Equal(t, defaultListLimit, page.Pagination.Limit)
	assert.Equal(t, 1, page.Pagination.Count)

	path := fmt.Sprintf("/api/alert/%s", created.ID)

	// Acknowledge
	code, resp = api.makeRequest(t, http.MethodPut, path+"/acknowledge", nil)
	require.Equal(t, http.StatusOK, code)
	var acked model.Alert
	require.NoError(t, json.Unmarshal(resp.Data, &acked))
	assert.Equal(t, model.AlertStatusAcknowledged, acked.Status)
	require.NotNil(t, acked.AcknowledgedBy)
	assert.Equal(t, api.doctor.ID, *acked.AcknowledgedBy)

	code, _ = api.makeRequest(t, http.MethodPut, path+"/acknowledge", nil)
	assert.Equal(t, http.StatusConflict, code)

	// Resolve
	code, resp = api.makeRequest(t, http.MethodPut, path+"/resolve", map[string]string{"notes": "rate settled after rest"})
	require.Equal(t, http.StatusOK, code)
	var resolved model.Alert
	require.NoError(t, json.Unmarshal(resp.Data, &resolved))
	assert.Equal(t, model.AlertStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolutionNotes)
	assert.Equal(t, "rate settled after rest", *resolved.ResolutionNotes)

	code, _ = api.makeRequest(t, http.MethodPut, path+"/escalate", map[string]string{"reason": "late"})
	assert.Equal(t, http.StatusConflict, code)

	// Get
	code, resp = api.makeRequest(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
}

func TestPatientCannotManageAlerts(t *testing.T) {
	api := newTestAPI(t)
	created := api.createAlert(t)

	api.as = api.patient
	code, resp := api.makeRequest(t, http.MethodPut, fmt.Sprintf("/api/alert/%s/acknowledge", created.ID), nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.False(t, resp.Success)

	// Patients may still raise an emergency for themselves
	code, _ = api.makeRequest(t, http.MethodPost, "/api/alert", map[string]interface{}{
		"patient_id": api.patient.ID,
		"type":       "emergency",
		"severity":   "critical",
		"title":      "Chest pain",
	})
	assert.Equal(t, http.StatusCreated, code)
}

func TestAlertRequestValidation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"unknown severity", http.MethodPost, "/api/alert", map[string]interface{}{
			"patient_id": api.patient.ID, "type": "vital_breach", "severity": "urgent", "title": "x",
		}, http.StatusBadRequest},
		{"missing title", http.MethodPost, "/api/alert", map[string]interface{}{
			"patient_id": api.patient.ID, "type": "vital_breach", "severity": "high",
		}, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/alert?status=open", nil, http.StatusBadRequest},
		{"malformed id", http.MethodGet, "/api/alert/not-a-uuid", nil, http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/api/alert/" + uuid.NewString(), nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := api.makeRequest(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code)
			assert.False(t, resp.Success)
		})
	}
}

func TestToFilter(t *testing.T) {
	patientID := uuid.New()
	f := toFilter(model.ListAlertsQuery{
		Status:    "escalated",
		Severity:  "critical",
		PatientID: patientID.String(),
		Limit:     10,
		Offset:    20,
	})

	require.NotNil(t, f.Status)
	assert.Equal(t, model.AlertStatusEscalated, *f.Status)
	require.NotNil(t, f.Severity)
	assert.Equal(t, model.SeverityCritical, *f.Severity)
	assert.Nil(t, f.Type)
	require.NotNil(t, f.PatientID)
	assert.Equal(t, patientID, *f.PatientID)
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, 20, f.Offset)
}
