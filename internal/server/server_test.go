package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readstreak/adpilot/internal/config"
)

type stubChecker struct{ err error }

func (s *stubChecker) ValidateConnection(ctx context.Context) error { return s.err }

type stubPinger struct{ err error }

func (s *stubPinger) Ping(ctx context.Context) error { return s.err }

func newTestServer(t *testing.T, meta *stubChecker, analytics *stubPinger) *Server {
	t.Helper()

	// KPI and monitor handlers stay nil: route registration does not
	// touch the receiver, and these tests only hit system routes.
	return New(Config{
		Log:            zerolog.Nop(),
		Config:         &config.Config{Port: 0, DevMode: true},
		SystemHandlers: NewSystemHandlers(t.TempDir(), meta, analytics, zerolog.Nop()),
	})
}

func doGet(t *testing.T, srv *Server, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubChecker{}, &stubPinger{})

	rec, body := doGet(t, srv, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "adpilot", body["service"])
}

func TestSystemHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubChecker{}, &stubPinger{})

	rec, body := doGet(t, srv, "/api/system/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "uptimeSeconds")
	assert.Contains(t, body, "cpuPercent")
	assert.Contains(t, body, "memPercent")
	assert.Contains(t, body, "goroutines")
	assert.Contains(t, body, "dataDirSizeMB")
}

func TestConnectionsEndpoint_ReportsFailures(t *testing.T) {
	srv := newTestServer(t,
		&stubChecker{err: errors.New("ad account read failed")},
		&stubPinger{},
	)

	rec, body := doGet(t, srv, "/api/system/connections")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ad account read failed", body["meta"])
	assert.Equal(t, "ok", body["analytics"])
}
