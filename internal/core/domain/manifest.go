package domain

// ManifestEntry is one document descriptor from a manifest.
type ManifestEntry struct {
	// DocID is optional. When empty the resolved path is used.
	DocID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Title is optional.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// PathOrURL is a local path, http(s) URL or s3:// URL.
	PathOrURL string `json:"path" yaml:"path" validate:"required"`

	// Tags are free-form labels.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// AllowedRoles restricts retrieval. Empty means everyone.
	AllowedRoles []string `json:"allowed_roles,omitempty" yaml:"allowed_roles,omitempty"`
}

// ID returns the stable document id, falling back to the path.
func (e ManifestEntry) ID() string {
	if e.DocID != "" {
		return e.DocID
	}
	return e.PathOrURL
}

// Manifest is the ordered, declarative list of documents defining the corpus.
type Manifest struct {
	// Path is where the manifest was loaded from.
	Path string

	// Entries are the document descriptors in manifest order.
	Entries []ManifestEntry `validate:"dive"`
}
