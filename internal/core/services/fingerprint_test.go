package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fingerprint([]byte(tt.input)))
			assert.Equal(t, tt.want, FingerprintText(tt.input))
		})
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	content := []byte("# Returns\n\nItems may be returned within 30 days.")
	assert.Equal(t, Fingerprint(content), Fingerprint(content))
	assert.NotEqual(t, Fingerprint(content), Fingerprint(append(content, ' ')))
	assert.Len(t, Fingerprint(content), 64)
}

func TestMetadataFingerprint(t *testing.T) {
	base := domain.ManifestEntry{
		PathOrURL:    "kb/returns.md",
		Title:        "Returns",
		Tags:         []string{"policy", "cs"},
		AllowedRoles: []string{"cs", "warehouse"},
	}
	want := MetadataFingerprint(base)

	reordered := base
	reordered.Tags = []string{"cs", "policy"}
	reordered.AllowedRoles = []string{"warehouse", "cs"}
	assert.Equal(t, want, MetadataFingerprint(reordered))

	tests := []struct {
		name   string
		mutate func(e *domain.ManifestEntry)
	}{
		{"roles", func(e *domain.ManifestEntry) { e.AllowedRoles = []string{"hr"} }},
		{"roles cleared", func(e *domain.ManifestEntry) { e.AllowedRoles = nil }},
		{"title", func(e *domain.ManifestEntry) { e.Title = "Refunds" }},
		{"tags", func(e *domain.ManifestEntry) { e.Tags = append([]string{"new"}, e.Tags...) }},
		{"path", func(e *domain.ManifestEntry) { e.PathOrURL = "kb/refunds.md" }},
		{"field boundary", func(e *domain.ManifestEntry) { e.PathOrURL, e.Title = "kb/returns.mdR", "eturns" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base
			tt.mutate(&e)
			assert.NotEqual(t, want, MetadataFingerprint(e))
		})
	}
}

func TestMetadataFingerprint_DoesNotMutateInput(t *testing.T) {
	roles := []string{"warehouse", "cs"}
	MetadataFingerprint(domain.ManifestEntry{PathOrURL: "a.md", AllowedRoles: roles})
	assert.Equal(t, []string{"warehouse", "cs"}, roles)
}
