package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Supports(t *testing.T) {
	f := New(time.Second)
	assert.True(t, f.Supports("https://intranet.example.com/faq.md"))
	assert.True(t, f.Supports("HTTP://example.com/a.txt"))
	assert.False(t, f.Supports("/kb/a.md"))
	assert.False(t, f.Supports("s3://bucket/a.md"))
}

func TestFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/handbook.md", r.URL.Path)
		w.Header().Set("Last-Modified", "Wed, 21 Oct 2025 07:28:00 GMT")
		_, _ = w.Write([]byte("# Handbook"))
	}))
	defer server.Close()

	got, err := New(time.Second).Fetch(context.Background(), server.URL+"/handbook.md")
	require.NoError(t, err)
	assert.Equal(t, "# Handbook", string(got.Content))
	assert.Equal(t, time.Date(2025, 10, 21, 7, 28, 0, 0, time.UTC), got.LastModified)
}

func TestFetcher_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(time.Second).Fetch(context.Background(), server.URL+"/x.md")
	assert.ErrorContains(t, err, "status 404")
}

func TestFetcher_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	_, err := New(50*time.Millisecond).Fetch(context.Background(), server.URL+"/slow.md")
	assert.Error(t, err)
}

func TestFetcher_NoLastModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain"))
	}))
	defer server.Close()

	got, err := NewWithClient(server.Client()).Fetch(context.Background(), server.URL+"/a.txt")
	require.NoError(t, err)
	assert.True(t, got.LastModified.IsZero())
}
