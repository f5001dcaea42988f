package arxiv

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2501.00001v1</id>
    <title>  Quantum Error Correction with Surface Codes  </title>
    <summary>
      We study surface codes for quantum error correction.
    </summary>
    <published>2025-01-01T12:00:00Z</published>
    <link href="http://arxiv.org/abs/2501.00001v1" rel="alternate" type="text/html"/>
    <link href="http://arxiv.org/pdf/2501.00001v1" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2501.00002v1</id>
    <title>Tensor Networks for Decoding</title>
    <summary>Tensor network decoders.</summary>
    <published>2025-01-02T12:00:00Z</published>
  </entry>
</feed>`

func TestSearchParsesFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "quantum error correction", q.Get("search_query"))
		assert.Equal(t, "5", q.Get("max_results"))
		assert.Equal(t, "submittedDate", q.Get("sortBy"))
		assert.Equal(t, "descending", q.Get("sortOrder"))
		fmt.Fprint(w, sampleFeed)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL

	client := NewClient(cfg, zap.NewNop())
	papers, err := client.Search(context.Background(), "quantum error correction", 5)
	require.NoError(t, err)
	require.Len(t, papers, 2)

	assert.Equal(t, "Quantum Error Correction with Surface Codes", papers[0].Title)
	assert.Equal(t, "We study surface codes for quantum error correction.", papers[0].Summary)
	assert.Equal(t, "2025-01-01T12:00:00Z", papers[0].Published)
	assert.Equal(t, "http://arxiv.org/abs/2501.00001v1", papers[0].Link)

	// entry without an alternate link falls back to the raw ID
	assert.Equal(t, "http://arxiv.org/abs/2501.00002v1", papers[1].Link)
}

func TestSearchRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, sampleFeed)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RetryCount = 3
	cfg.RetryDelay = time.Millisecond

	client := NewClient(cfg, zap.NewNop())
	papers, err := client.Search(context.Background(), "codes", 5)
	require.NoError(t, err)
	assert.Len(t, papers, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSearchExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RetryCount = 2
	cfg.RetryDelay = time.Millisecond

	client := NewClient(cfg, zap.NewNop())
	_, err := client.Search(context.Background(), "codes", 5)
	assert.Error(t, err)
}

func TestSearchCancelledBetweenRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RetryCount = 5
	cfg.RetryDelay = 10 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := NewClient(cfg, zap.NewNop())
	_, err := client.Search(ctx, "codes", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchMalformedXML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not xml at all {")
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RetryDelay = time.Millisecond

	client := NewClient(cfg, zap.NewNop())
	_, err := client.Search(context.Background(), "codes", 5)
	assert.Error(t, err)
}
