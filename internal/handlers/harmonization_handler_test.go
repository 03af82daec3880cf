package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/models"
	"github.com/ternarybob/harmonia/internal/services/harmonization"
)

type stubService struct {
	submitted *models.HarmonizationRequest
	edits     harmonization.Edits
	versions  []string
	err       error
}

func (s *stubService) Submit(ctx context.Context, req *models.HarmonizationRequest) (*models.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.submitted = req
	return models.NewSession(req), nil
}

func (s *stubService) Session(ctx context.Context, id string) (*models.Session, error) {
	if id != "known" {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrSessionNotFound, id)
	}
	return &models.Session{ID: id, Status: models.SessionPolling}, nil
}

func (s *stubService) Sessions(ctx context.Context, limit int) ([]*models.Session, error) {
	sessions := []*models.Session{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	if limit < len(sessions) {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (s *stubService) Cancel(ctx context.Context, id string) (*models.Session, error) {
	return &models.Session{ID: id, Status: models.SessionCancelled}, nil
}

func (s *stubService) SchemaVersions(ctx context.Context) ([]string, error) {
	return s.versions, s.err
}

func (s *stubService) SaveEdits(ctx context.Context, id string, edits harmonization.Edits) (*harmonization.SaveResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.edits = edits
	return &harmonization.SaveResult{ReconcileResult: harmonization.ReconcileResult{Saved: true, KeyMapModified: 1}}, nil
}

func (s *stubService) Download(ctx context.Context, id string) (string, []byte, error) {
	if s.err != nil {
		return "", nil, s.err
	}
	return "AcmeCo.json", []byte("{\n  \"a\": 1\n}"), nil
}

func multipartRequest(t *testing.T, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile(models.FormInputFile, "input.json")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/harmonize", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func validFields() map[string]string {
	return map[string]string{
		models.FormProviderName:        "AcmeCo",
		models.FormDataDomain:          "customers",
		models.FormSourceSchemaVersion: "v1",
		models.FormTargetSchemaVersion: "v2",
		models.FormGenerateMissingKey:  "true",
	}
}

func TestSubmitHandler_Accepted(t *testing.T) {
	svc := &stubService{}
	h := NewHarmonizationHandler(svc, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.SubmitHandler(rec, multipartRequest(t, validFields(), []byte(`[{"a":1}]`)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.NotNil(t, svc.submitted)
	assert.Equal(t, "AcmeCo", svc.submitted.ProviderName)
	assert.True(t, svc.submitted.GenerateMissingKey)
	assert.Equal(t, "input.json", svc.submitted.FileName)
	assert.Equal(t, []byte(`[{"a":1}]`), svc.submitted.File)

	var session models.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&session))
	assert.Equal(t, models.SessionDispatched, session.Status)
}

func TestSubmitHandler_MissingFile(t *testing.T) {
	h := NewHarmonizationHandler(&stubService{}, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.SubmitHandler(rec, multipartRequest(t, validFields(), nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "please upload an input file")
}

func TestSubmitHandler_MissingField(t *testing.T) {
	h := NewHarmonizationHandler(&stubService{}, arbor.NewLogger())
	fields := validFields()
	delete(fields, models.FormDataDomain)

	rec := httptest.NewRecorder()
	h.SubmitHandler(rec, multipartRequest(t, fields, []byte("{}")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "DataDomain")
}

func TestSubmitHandler_MethodNotAllowed(t *testing.T) {
	h := NewHarmonizationHandler(&stubService{}, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.SubmitHandler(rec, httptest.NewRequest(http.MethodGet, "/api/harmonize", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSessionHandler_NotFound(t *testing.T) {
	h := NewHarmonizationHandler(&stubService{}, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.SessionHandler(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/nope", nil), "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveEditsHandler(t *testing.T) {
	svc := &stubService{}
	h := NewHarmonizationHandler(svc, arbor.NewLogger())

	body := `{"keymap":[{"source":"nm","target":"full_name"}],"schema":[{"name":"customer_id","constraints":"{\"required\": true}"}]}`
	rec := httptest.NewRecorder()
	h.SaveEditsHandler(rec, httptest.NewRequest(http.MethodPut, "/api/sessions/known/edits", strings.NewReader(body)), "known")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.KeyMapEntry{{Source: "nm", Target: "full_name"}}, svc.edits.KeyMap)
	assert.Equal(t, `{"required": true}`, svc.edits.Schema[0]["constraints"])

	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, true, result["saved"])
}

func TestSaveEditsHandler_NotEditable(t *testing.T) {
	h := NewHarmonizationHandler(&stubService{err: harmonization.ErrNotEditable}, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.SaveEditsHandler(rec, httptest.NewRequest(http.MethodPut, "/api/sessions/known/edits", strings.NewReader(`{}`)), "known")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDownloadHandler(t *testing.T) {
	h := NewHarmonizationHandler(&stubService{}, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.DownloadHandler(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/known/download", nil), "known")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="AcmeCo.json"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "{\n  \"a\": 1\n}", rec.Body.String())
}

func TestSchemaVersionsHandler_StoreDown(t *testing.T) {
	h := NewHarmonizationHandler(&stubService{err: errors.New("no reachable servers")}, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.SchemaVersionsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/schema-versions", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionsHandler(t *testing.T) {
	h := NewHarmonizationHandler(&stubService{}, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.SessionsHandler(rec, httptest.NewRequest("GET", "/api/sessions?limit=2", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Sessions []models.Session `json:"sessions"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 2, body.Count)

	rec = httptest.NewRecorder()
	h.SessionsHandler(rec, httptest.NewRequest("GET", "/api/sessions?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
