package internal

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/studytrack/internal/testutil"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Backend.SQLite.Path = filepath.Join(t.TempDir(), "studytrack.db")
	cfg.Inbox.Path = filepath.Join(t.TempDir(), "inbox")
	cfg.Weather.Timezone = "UTC"
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestSetupRequiresConfig(t *testing.T) {
	_, _, err := setup(context.Background())
	assert.EqualError(t, err, "config is required")
}

func TestSetupOpensConfiguredBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Inbox.Enabled = true

	a, _, err := setup(context.Background(), WithConfig(cfg), WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.Session.Snapshot().Initialized)
	assert.NotNil(t, a.Inbox)
	assert.DirExists(t, cfg.Inbox.Path)
	assert.FileExists(t, cfg.Backend.SQLite.Path)
}

func TestSetupRejectsUnknownTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Weather.Timezone = "Mars/Olympus_Mons"

	_, _, err := setup(context.Background(), WithConfig(cfg), WithGateway(testutil.TestGateway(t)), WithLogOutput(&bytes.Buffer{}))
	assert.Error(t, err)
}

func TestHTTPHandler(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.BasePath = "/study"

	a, _, err := setup(context.Background(), WithConfig(cfg), WithGateway(testutil.TestGateway(t)), WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	defer a.Close()
	h := NewHTTPHandler(a.App)

	cases := []struct {
		path     string
		status   int
		location string
	}{
		{"/health/live", http.StatusOK, ""},
		{"/health/ready", http.StatusOK, ""},
		{"/api/session", http.StatusOK, ""},
		{"/api/issues", http.StatusUnauthorized, ""},
		{"/study/issues", http.StatusFound, "/study/login"},
		{"/study/login", http.StatusOK, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, tc.path)
		if tc.location != "" {
			assert.Equal(t, tc.location, w.Header().Get("Location"), tc.path)
		}
	}
}
