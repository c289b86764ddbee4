package filesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalPath(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{"file URI", "file:///srv/kb/returns.md", "/srv/kb/returns.md"},
		{"file URI with spaces", "file:///srv/kb/my docs/a.md", "/srv/kb/my docs/a.md"},
		{"bare path", "/srv/kb/returns.md", "/srv/kb/returns.md"},
		{"relative path", "kb/returns.md", "kb/returns.md"},
		{"prefix only", "file://", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LocalPath(tt.uri))
		})
	}
}
