package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/aevon-lab/tally/internal/metrics"
)

type fakeHealth struct {
	name string
	err  error
}

func (f fakeHealth) Ping(context.Context) error { return f.err }
func (f fakeHealth) SourceName() string         { return f.name }

func serve(s *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp := httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, req)
	return resp
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		health     HealthChecker
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name:       "no source",
			health:     nil,
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"status": "healthy", "source": "none"},
		},
		{
			name:       "reachable source",
			health:     fakeHealth{name: "database"},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"status": "healthy", "source": "database"},
		},
		{
			name:       "unreachable source",
			health:     fakeHealth{name: "database", err: errors.New("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"status": "unhealthy", "source": "database", "error": "record source unreachable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(":0", tt.health, nil, gin.TestMode)

			resp := serve(s, "/health")

			require.Equal(t, tt.wantStatus, resp.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			require.Equal(t, tt.wantBody, body)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	s := New(":0", nil, m, gin.TestMode)

	require.Equal(t, http.StatusOK, serve(s, "/health").Code)
	require.Equal(t, http.StatusNotFound, serve(s, "/nowhere").Code)

	resp := serve(s, "/metrics")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "tally_http_requests_total")

	require.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "/health", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "404")))
}
