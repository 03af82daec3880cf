// Package templates provides the embedded operator pages with user override support.
// Pages are loaded with resolution order:
// 1. User override: pagesDir/{name}
// 2. Embedded default: internal/templates/{name}
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
)

//go:embed *.html
var fs embed.FS

// IndexPage is the operator page: request form, editors and download link
const IndexPage = "index.html"

// GetPage parses a page template, preferring a user override in pagesDir
func GetPage(name string, pagesDir string) (*template.Template, error) {
	if pagesDir != "" {
		userPath := filepath.Join(pagesDir, name)
		if data, err := os.ReadFile(userPath); err == nil {
			return parsePage(name, data)
		}
	}

	data, err := fs.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("page %q not found: %w", name, err)
	}
	return parsePage(name, data)
}

func parsePage(name string, data []byte) (*template.Template, error) {
	tmpl, err := template.New(name).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %q: %w", name, err)
	}
	return tmpl, nil
}

// ListPages returns the names of all embedded pages
func ListPages() ([]string, error) {
	entries, err := fs.ReadDir(".")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
