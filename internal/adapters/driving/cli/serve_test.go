package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServeCmd_Use(t *testing.T) {
	assert.Equal(t, "serve", serveCmd.Use)
	assert.Equal(t, "Start the HTTP API", serveCmd.Short)
}

func TestServeCmd_Flags(t *testing.T) {
	addr := serveCmd.Flags().Lookup("addr")
	assert.NotNil(t, addr)
	assert.Equal(t, "", addr.DefValue)
	assert.NotNil(t, serveCmd.Flags().Lookup("manifest"))
}

func TestServeCmd_LongListsRoutes(t *testing.T) {
	for _, route := range []string{"/v1/ask", "/v1/retrieve", "/v1/sync", "/v1/queries", "/v1/sync-runs", "/healthz", "/metrics"} {
		assert.Contains(t, serveCmd.Long, route)
	}
}
