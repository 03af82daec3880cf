package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/models"
	"github.com/ternarybob/harmonia/internal/services/harmonization"
)

// maxUploadSize bounds the multipart form held in memory
const maxUploadSize = 32 << 20

const defaultSessionLimit = 20

// HarmonizationHandler serves the harmonization session API
type HarmonizationHandler struct {
	service HarmonizationService
	logger  arbor.ILogger
}

func NewHarmonizationHandler(service HarmonizationService, logger arbor.ILogger) *HarmonizationHandler {
	return &HarmonizationHandler{
		service: service,
		logger:  logger,
	}
}

// SchemaVersionsHandler lists the schema versions for the version pickers
func (h *HarmonizationHandler) SchemaVersionsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	versions, err := h.service.SchemaVersions(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list schema versions")
		WriteError(w, http.StatusServiceUnavailable, "Could not connect to the database. Please check your configuration.")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"versions": versions,
		"count":    len(versions),
	})
}

// SubmitHandler accepts the multipart request form and starts a session
func (h *HarmonizationHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	req, err := parseRequestForm(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.service.Submit(r.Context(), req)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			WriteError(w, http.StatusBadRequest, describeValidation(validationErrs))
			return
		}
		h.logger.Error().Err(err).Msg("Failed to submit harmonization")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, session)
}

// parseRequestForm reads the form fields and the uploaded input file
func parseRequestForm(r *http.Request) (*models.HarmonizationRequest, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	file, header, err := r.FormFile(models.FormInputFile)
	if err != nil {
		return nil, errors.New("please upload an input file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	generate := false
	if v := r.FormValue(models.FormGenerateMissingKey); v != "" {
		generate, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %q", models.FormGenerateMissingKey, v)
		}
	}

	return &models.HarmonizationRequest{
		ProviderName:        strings.TrimSpace(r.FormValue(models.FormProviderName)),
		DataDomain:          strings.TrimSpace(r.FormValue(models.FormDataDomain)),
		SourceSchemaVersion: r.FormValue(models.FormSourceSchemaVersion),
		TargetSchemaVersion: r.FormValue(models.FormTargetSchemaVersion),
		GenerateMissingKey:  generate,
		FileName:            header.Filename,
		File:                data,
	}, nil
}

func describeValidation(errs validator.ValidationErrors) string {
	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field())
	}
	return "missing required fields: " + strings.Join(fields, ", ")
}

// SessionsHandler lists the most recently updated sessions
func (h *HarmonizationHandler) SessionsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit := defaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := h.service.Sessions(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list sessions")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// SessionHandler returns the state of one session
func (h *HarmonizationHandler) SessionHandler(w http.ResponseWriter, r *http.Request, id string) {
	session, err := h.service.Session(r.Context(), id)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, session)
}

// CancelHandler stops the background polling of a session
func (h *HarmonizationHandler) CancelHandler(w http.ResponseWriter, r *http.Request, id string) {
	session, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, session)
}

// SaveEditsHandler reconciles the edited tables and runs the final workflow
func (h *HarmonizationHandler) SaveEditsHandler(w http.ResponseWriter, r *http.Request, id string) {
	var edits harmonization.Edits
	if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.SaveEdits(r.Context(), id, edits)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// DownloadHandler returns the harmonized output as an attachment
func (h *HarmonizationHandler) DownloadHandler(w http.ResponseWriter, r *http.Request, id string) {
	fileName, body, err := h.service.Download(r.Context(), id)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	if err := WriteAttachment(w, fileName, "application/json", body); err != nil {
		h.logger.Warn().Err(err).Str("session_id", id).Msg("Failed to write download")
	}
}

func (h *HarmonizationHandler) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interfaces.ErrSessionNotFound):
		WriteError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, harmonization.ErrNotEditable), errors.Is(err, harmonization.ErrNoOutput):
		WriteError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error().Err(err).Msg("Session request failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
