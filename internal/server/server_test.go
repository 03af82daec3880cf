package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/app"
	"github.com/ternarybob/harmonia/internal/common"
	"github.com/ternarybob/harmonia/internal/handlers"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/models"
	"github.com/ternarybob/harmonia/internal/services/harmonization"
)

type routedService struct {
	calls []string
}

func (s *routedService) Submit(ctx context.Context, req *models.HarmonizationRequest) (*models.Session, error) {
	s.calls = append(s.calls, "submit")
	return models.NewSession(req), nil
}

func (s *routedService) Session(ctx context.Context, id string) (*models.Session, error) {
	s.calls = append(s.calls, "session:"+id)
	if id == "missing" {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrSessionNotFound, id)
	}
	return &models.Session{ID: id, Status: models.SessionPolling}, nil
}

func (s *routedService) Sessions(ctx context.Context, limit int) ([]*models.Session, error) {
	s.calls = append(s.calls, fmt.Sprintf("sessions:%d", limit))
	return []*models.Session{}, nil
}

func (s *routedService) Cancel(ctx context.Context, id string) (*models.Session, error) {
	s.calls = append(s.calls, "cancel:"+id)
	return &models.Session{ID: id, Status: models.SessionCancelled}, nil
}

func (s *routedService) SchemaVersions(ctx context.Context) ([]string, error) {
	s.calls = append(s.calls, "versions")
	return []string{"v1", "v2"}, nil
}

func (s *routedService) SaveEdits(ctx context.Context, id string, edits harmonization.Edits) (*harmonization.SaveResult, error) {
	s.calls = append(s.calls, "edits:"+id)
	return &harmonization.SaveResult{ReconcileResult: harmonization.ReconcileResult{Saved: true}}, nil
}

func (s *routedService) Download(ctx context.Context, id string) (string, []byte, error) {
	s.calls = append(s.calls, "download:"+id)
	return "AcmeCo.json", []byte(`{}`), nil
}

func newTestServer(t *testing.T) (*Server, *routedService) {
	t.Helper()

	logger := arbor.NewLogger()
	svc := &routedService{}
	cfg := common.NewDefaultConfig()

	application := &app.App{
		Config:               cfg,
		Logger:               logger,
		APIHandler:           handlers.NewAPIHandler(logger),
		HarmonizationHandler: handlers.NewHarmonizationHandler(svc, logger),
		WSHandler:            handlers.NewWebSocketHandler(nil, logger, &cfg.WebSocket),
		PageHandler:          handlers.NewPageHandler(logger, ""),
	}
	return New(application), svc
}

func TestParseSessionPath(t *testing.T) {
	tests := []struct {
		path   string
		id     string
		action string
		ok     bool
	}{
		{"/api/sessions/abc", "abc", "", true},
		{"/api/sessions/abc/", "abc", "", true},
		{"/api/sessions/abc/edits", "abc", "edits", true},
		{"/api/sessions/abc/download", "abc", "download", true},
		{"/api/sessions/", "", "", false},
		{"/api/sessions/abc/edits/extra", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			id, action, ok := parseSessionPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.action, action)
		})
	}
}

func TestSessionRoutes(t *testing.T) {
	srv, svc := newTestServer(t)

	tests := []struct {
		method string
		path   string
		body   string
		status int
		call   string
	}{
		{"GET", "/api/sessions/s1", "", http.StatusOK, "session:s1"},
		{"DELETE", "/api/sessions/s1", "", http.StatusOK, "cancel:s1"},
		{"PUT", "/api/sessions/s1/edits", `{"keymap":[]}`, http.StatusOK, "edits:s1"},
		{"GET", "/api/sessions/s1/download", "", http.StatusOK, "download:s1"},
		{"GET", "/api/sessions/missing", "", http.StatusNotFound, "session:missing"},
		{"GET", "/api/sessions?limit=5", "", http.StatusOK, "sessions:5"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			require.NotEmpty(t, svc.calls)
			assert.Equal(t, tt.call, svc.calls[len(svc.calls)-1])
		})
	}
}

func TestSessionRoutes_MethodNotAllowed(t *testing.T) {
	srv, svc := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/sessions/s1/download", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Empty(t, svc.calls)
}

func TestUnknownRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/nope", "/api/sessions/s1/unknown", "/elsewhere"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestIndexPageAndSystemRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Data Harmonization")
	assert.Contains(t, rec.Body.String(), common.GetVersion())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/schema-versions", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"v2"`)
}

func TestPreflight(t *testing.T) {
	srv, svc := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/harmonize", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.calls)
}

func TestRequestID(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/sessions/s1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36, "generated as a uuid")

	req := httptest.NewRequest("GET", "/api/sessions/missing", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestRequestID_RecoveredPanic(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/sessions/s1/edits", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
