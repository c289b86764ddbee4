// Package manifest loads document manifests from JSON or YAML files.
//
// Two shapes are accepted under a top-level "documents" key:
//
//	{"documents": ["a.md", "b.pdf"]}
//
//	documents:
//	  - id: returns
//	    title: Returns Policy
//	    path: policies/returns.md
//	    tags: [policy]
//	    allowed_roles: [cs]
//
// Both shapes may be mixed in one list. "url" is accepted in place of
// "path". Relative local paths resolve against the manifest's directory.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/errs"
)

// Ensure Loader implements the interface.
var _ driven.ManifestLoader = (*Loader)(nil)

// Loader reads manifests from the local filesystem.
type Loader struct {
	validate *validator.Validate
}

// NewLoader creates a manifest loader.
func NewLoader() *Loader {
	return &Loader{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// rawManifest is the on-disk shape.
type rawManifest struct {
	Documents []rawEntry `json:"documents" yaml:"documents"`
}

// rawEntry is either a bare path string or a descriptor object.
type rawEntry struct {
	ID           string   `json:"id" yaml:"id"`
	Title        string   `json:"title" yaml:"title"`
	Path         string   `json:"path" yaml:"path"`
	URL          string   `json:"url" yaml:"url"`
	Tags         []string `json:"tags" yaml:"tags"`
	AllowedRoles []string `json:"allowed_roles" yaml:"allowed_roles"`
}

// entryFields lets the custom decoders reuse default struct decoding.
type entryFields rawEntry

// UnmarshalJSON accepts a string or an object.
func (e *rawEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var path string
		if err := json.Unmarshal(data, &path); err != nil {
			return err
		}
		*e = rawEntry{Path: path}
		return nil
	}
	var fields entryFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*e = rawEntry(fields)
	return nil
}

// UnmarshalYAML accepts a scalar or a mapping.
func (e *rawEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*e = rawEntry{Path: node.Value}
		return nil
	}
	var fields entryFields
	if err := node.Decode(&fields); err != nil {
		return err
	}
	*e = rawEntry(fields)
	return nil
}

// Load reads and validates the manifest at path.
func (l *Loader) Load(path string) (*domain.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIngestionManifestInvalid, "reading manifest",
			errs.Field("manifest", path))
	}

	raw, err := decode(path, data)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIngestionManifestInvalid, "parsing manifest",
			errs.Field("manifest", path))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	baseDir := filepath.Dir(absPath)

	manifest := &domain.Manifest{
		Path:    path,
		Entries: make([]domain.ManifestEntry, 0, len(raw.Documents)),
	}
	for _, doc := range raw.Documents {
		location := strings.TrimSpace(doc.Path)
		if location == "" {
			location = strings.TrimSpace(doc.URL)
		}
		manifest.Entries = append(manifest.Entries, domain.ManifestEntry{
			DocID:        strings.TrimSpace(doc.ID),
			Title:        strings.TrimSpace(doc.Title),
			PathOrURL:    ResolvePath(baseDir, location),
			Tags:         doc.Tags,
			AllowedRoles: doc.AllowedRoles,
		})
	}

	if err := l.validate.Struct(manifest); err != nil {
		return nil, errs.Wrap(describe(err), errs.CodeIngestionManifestInvalid,
			"invalid manifest", errs.Field("manifest", path))
	}
	return manifest, nil
}

func decode(path string, data []byte) (*rawManifest, error) {
	var raw rawManifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}
	return &raw, nil
}

// describe turns validator errors into entry-level messages.
func describe(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
}

// IsRemote reports whether location is a URL rather than a local path.
func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "s3://")
}

// ResolvePath makes a relative local path absolute against baseDir.
// URLs, absolute paths and empty strings are returned unchanged.
func ResolvePath(baseDir, location string) string {
	if location == "" || IsRemote(location) || filepath.IsAbs(location) {
		return location
	}
	return filepath.Join(baseDir, location)
}
