package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManagerStartAndShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	m := NewManager(handler, cfg, zap.NewNop())
	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())

	resp, err := http.Get(fmt.Sprintf("http://%s/", m.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())

	// 再次关闭是幂等的
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManagerDoubleStartFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"

	m := NewManager(http.NewServeMux(), cfg, zap.NewNop())
	require.NoError(t, m.Start())
	defer m.Shutdown(context.Background())

	assert.Error(t, m.Start())
}

func TestManagerStartAfterCloseFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"

	m := NewManager(http.NewServeMux(), cfg, zap.NewNop())
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Error(t, m.Start())
}
