package templates

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPage_Embedded(t *testing.T) {
	tmpl, err := GetPage(IndexPage, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, map[string]interface{}{"Version": "1.2.3"}))
	assert.Contains(t, buf.String(), "1.2.3")
}

func TestGetPage_UserOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexPage), []byte("custom {{.Version}}"), 0644))

	tmpl, err := GetPage(IndexPage, dir)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, map[string]interface{}{"Version": "x"}))
	assert.Equal(t, "custom x", buf.String())
}

func TestGetPage_Unknown(t *testing.T) {
	_, err := GetPage("missing.html", "")
	assert.Error(t, err)
}

func TestListPages(t *testing.T) {
	pages, err := ListPages()
	require.NoError(t, err)
	assert.Contains(t, pages, IndexPage)
}
