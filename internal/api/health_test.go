package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func readiness(t *testing.T, h *HealthHandler) (int, ReadinessResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var resp ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     []Check
		wantCode   int
		wantStatus string
	}{
		{
			name:       "all up",
			checks:     []Check{{Name: "postgres", Critical: true, Ping: up}, {Name: "redis", Ping: up}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "optional dependency down",
			checks:     []Check{{Name: "postgres", Critical: true, Ping: up}, {Name: "kafka", Ping: down}},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
		{
			name:       "database down",
			checks:     []Check{{Name: "postgres", Critical: true, Ping: down}, {Name: "kafka", Ping: down}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := readiness(t, NewHealthHandler("test", "1.2.3", tt.checks...))
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Len(t, resp.Dependencies, len(tt.checks))
		})
	}
}

func TestReadinessReportsEachDependency(t *testing.T) {
	_, resp := readiness(t, NewHealthHandler("test", "1.2.3",
		Check{Name: "postgres", Critical: true, Ping: up},
		Check{Name: "kafka", Ping: down},
	))
	assert.Equal(t, map[string]string{"postgres": "ok", "kafka": "down"}, resp.Dependencies)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler("prod", "1.2.3").Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	var resp LivenessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "prod", resp.Env)
}
