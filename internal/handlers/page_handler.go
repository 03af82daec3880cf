package handlers

import (
	"html/template"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/common"
	"github.com/ternarybob/harmonia/internal/templates"
)

type PageHandler struct {
	logger   arbor.ILogger
	pagesDir string
}

// NewPageHandler serves the embedded pages. A page file in pagesDir overrides
// the embedded one.
func NewPageHandler(logger arbor.ILogger, pagesDir string) *PageHandler {
	return &PageHandler{
		logger:   logger,
		pagesDir: pagesDir,
	}
}

// ServePage creates a handler function for serving a specific page template
func (h *PageHandler) ServePage(templateName string, pageName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/"+pageName {
			http.NotFound(w, r)
			return
		}

		tmpl, err := h.page(templateName)
		if err != nil {
			h.logger.Error().Err(err).Str("template", templateName).Msg("Failed to load page")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		data := map[string]interface{}{
			"Page":    pageName,
			"Version": common.GetVersion(),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			h.logger.Error().
				Err(err).
				Str("template", templateName).
				Msg("Failed to render page")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

func (h *PageHandler) page(name string) (*template.Template, error) {
	return templates.GetPage(name, h.pagesDir)
}
