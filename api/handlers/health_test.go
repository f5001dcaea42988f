package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func TestHandleRootBanner(t *testing.T) {
	h := NewHealthHandler("researchflow", "1.2.3", nil, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleRoot(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "researchflow", data["service"])
	assert.Equal(t, "1.2.3", data["version"])
}

func TestHandleRootUnknownPath(t *testing.T) {
	h := NewHealthHandler("researchflow", "dev", nil, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleRoot(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealthWithCache(t *testing.T) {
	h := NewHealthHandler("researchflow", "dev", &fakePinger{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, "healthy", data["status"])
	checks := data["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["cache"])
}

func TestHandleHealthDegradedCache(t *testing.T) {
	h := NewHealthHandler("researchflow", "dev", &fakePinger{err: errors.New("conn refused")}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, "degraded", data["status"])
}

func TestHandleHealthz(t *testing.T) {
	h := NewHealthHandler("researchflow", "dev", nil, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHandleReady(t *testing.T) {
	h := NewHealthHandler("researchflow", "dev", &fakePinger{}, zap.NewNop())
	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewHealthHandler("researchflow", "dev", &fakePinger{err: errors.New("down")}, zap.NewNop())
	rec = httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleVersion(t *testing.T) {
	h := NewHealthHandler("researchflow", "0.9.0", nil, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleVersion(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, "0.9.0", data["version"])
}
