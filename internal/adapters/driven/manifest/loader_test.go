package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/errs"
)

func writeManifest(t *testing.T, name, content string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return dir, path
}

func TestLoad_JSONMinimal(t *testing.T) {
	dir, path := writeManifest(t, "manifest.json", `{"documents": ["docs/returns.md", "/abs/faq.txt"]}`)

	m, err := NewLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, m.Path)
	require.Len(t, m.Entries, 2)

	first := m.Entries[0]
	assert.Equal(t, filepath.Join(dir, "docs", "returns.md"), first.PathOrURL)
	assert.Empty(t, first.DocID)
	assert.Equal(t, first.PathOrURL, first.ID())
	assert.Empty(t, first.AllowedRoles)

	assert.Equal(t, "/abs/faq.txt", m.Entries[1].PathOrURL)
}

func TestLoad_JSONExtended(t *testing.T) {
	_, path := writeManifest(t, "kb.json", `{
		"documents": [
			{"id": "returns", "title": "Returns Policy", "path": "returns.md", "tags": ["policy"], "allowed_roles": ["cs"]},
			{"id": "handbook", "url": "https://intranet.example.com/handbook.md"},
			"notes.txt"
		]
	}`)

	m, err := NewLoader().Load(path)
	require.NoError(t, err)
	require.Len(t, m.Entries, 3)

	assert.Equal(t, "returns", m.Entries[0].ID())
	assert.Equal(t, "Returns Policy", m.Entries[0].Title)
	assert.Equal(t, []string{"policy"}, m.Entries[0].Tags)
	assert.Equal(t, []string{"cs"}, m.Entries[0].AllowedRoles)

	assert.Equal(t, "https://intranet.example.com/handbook.md", m.Entries[1].PathOrURL)
	assert.Equal(t, "notes.txt", filepath.Base(m.Entries[2].PathOrURL))
}

func TestLoad_YAML(t *testing.T) {
	dir, path := writeManifest(t, "manifest.yaml", `
documents:
  - id: parental-leave
    title: Parental Leave
    path: hr/parental_leave.md
    allowed_roles: [hr, managers]
  - id: warehouse-sop
    path: s3://kb-bucket/sop/warehouse.pdf
    tags:
      - ops
  - plain/readme.txt
`)

	m, err := NewLoader().Load(path)
	require.NoError(t, err)
	require.Len(t, m.Entries, 3)

	assert.Equal(t, filepath.Join(dir, "hr", "parental_leave.md"), m.Entries[0].PathOrURL)
	assert.Equal(t, []string{"hr", "managers"}, m.Entries[0].AllowedRoles)
	assert.Equal(t, "s3://kb-bucket/sop/warehouse.pdf", m.Entries[1].PathOrURL)
	assert.Equal(t, []string{"ops"}, m.Entries[1].Tags)
	assert.Equal(t, filepath.Join(dir, "plain", "readme.txt"), m.Entries[2].PathOrURL)
}

func TestLoad_EmptyDocuments(t *testing.T) {
	_, path := writeManifest(t, "m.yml", "documents: []\n")
	m, err := NewLoader().Load(path)
	require.NoError(t, err)
	assert.Empty(t, m.Entries)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"malformed json", "m.json", `{"documents": [`},
		{"malformed yaml", "m.yaml", "documents: [a, b"},
		{"entry without path", "m.yaml", "documents:\n  - id: orphan\n    title: No path\n"},
		{"blank path", "m.json", `{"documents": ["   "]}`},
		{"documents not a list", "m.json", `{"documents": "a.md"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, path := writeManifest(t, tc.file, tc.content)
			_, err := NewLoader().Load(path)
			require.Error(t, err)
			assert.Equal(t, errs.CodeIngestionManifestInvalid, errs.CodeOf(err))
			assert.True(t, errs.IsIngestion(err))
		})
	}
}

func TestLoad_MissingPathReportsField(t *testing.T) {
	_, path := writeManifest(t, "m.yaml", "documents:\n  - id: orphan\n")
	_, err := NewLoader().Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "PathOrURL")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader().Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Equal(t, errs.CodeIngestionManifestInvalid, errs.CodeOf(err))
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		location string
		want     string
	}{
		{"a.md", "/base/a.md"},
		{"sub/../b.md", "/base/b.md"},
		{"/abs/c.md", "/abs/c.md"},
		{"https://example.com/d.md", "https://example.com/d.md"},
		{"HTTP://example.com/e.md", "HTTP://example.com/e.md"},
		{"s3://bucket/f.pdf", "s3://bucket/f.pdf"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.location, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolvePath("/base", tc.location))
		})
	}
}
