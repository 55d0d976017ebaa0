package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/hfcache-go/internal/domain"
	"go.uber.org/zap"
)

func newTestFetcher(endpoint string) *HubFetcher {
	return NewHubFetcher(domain.DownloadConfig{
		Endpoint:       endpoint,
		Revision:       "main",
		Token:          "hf_secret",
		UserAgent:      "hfcache-test",
		ChunkSize:      4,
		RequestTimeout: 5 * time.Second,
	}, zap.NewNop())
}

func TestHubFetcher_FileURL(t *testing.T) {
	f := newTestFetcher("https://huggingface.co/")
	assert.Equal(t, "https://huggingface.co/lysandre/arxiv-nlp/resolve/main/config.json",
		f.FileURL("lysandre/arxiv-nlp", "config.json"))
	assert.Equal(t, "https://huggingface.co/org/m/resolve/main/onnx/model%20v2.onnx",
		f.FileURL("org/m", "onnx/model v2.onnx"))
}

func TestHubFetcher_Fetch(t *testing.T) {
	body := []byte(`{"architectures":["GPT2LMHeadModel"]}`)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lysandre/arxiv-nlp/resolve/main/config.json", r.URL.Path)
		assert.Equal(t, "Bearer hf_secret", r.Header.Get("Authorization"))
		assert.Equal(t, "hfcache-test", r.Header.Get("User-Agent"))
		_, _ = w.Write(body)
	}))
	defer server.Close()

	var buf bytes.Buffer
	var lastWritten, lastTotal int64
	calls := 0
	n, err := newTestFetcher(server.URL).Fetch(context.Background(), "lysandre/arxiv-nlp", "config.json", &buf,
		func(written, total int64) {
			assert.GreaterOrEqual(t, written, lastWritten)
			lastWritten, lastTotal = written, total
			calls++
		})

	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), n)
	assert.Equal(t, body, buf.Bytes())
	assert.Equal(t, int64(len(body)), lastWritten)
	assert.Equal(t, int64(len(body)), lastTotal)
	assert.Greater(t, calls, 2, "progress reported per chunk")
}

func TestHubFetcher_UnknownLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("part1"))
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("part2"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	var total int64 = -1
	n, err := newTestFetcher(server.URL).Fetch(context.Background(), "a/b", "f", &buf, func(_, t int64) { total = t })
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	assert.Zero(t, total)
}

func TestHubFetcher_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		code      platformerrors.ErrorCode
		retryable bool
	}{
		{http.StatusNotFound, platformerrors.CodeNotFound, false},
		{http.StatusUnauthorized, platformerrors.CodeForbidden, false},
		{http.StatusForbidden, platformerrors.CodeForbidden, false},
		{http.StatusTooManyRequests, platformerrors.CodeRateLimit, true},
		{http.StatusInternalServerError, platformerrors.CodeNetwork, true},
		{http.StatusBadGateway, platformerrors.CodeNetwork, true},
		{http.StatusBadRequest, platformerrors.CodeExecutionFailed, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			var buf bytes.Buffer
			_, err := newTestFetcher(server.URL).Fetch(context.Background(), "a/b", "f", &buf, nil)
			require.Error(t, err)
			assert.Equal(t, tt.code, platformerrors.GetCode(err))
			assert.Equal(t, tt.retryable, platformerrors.IsRetryable(err))
			assert.Zero(t, buf.Len())
		})
	}
}

func TestHubFetcher_TransportErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestFetcher(url).Fetch(context.Background(), "a/b", "f", &bytes.Buffer{}, nil)
	require.Error(t, err)
	assert.True(t, platformerrors.IsRetryable(err))
}

func TestHubFetcher_CancelBetweenChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := newTestFetcher(server.URL).Fetch(ctx, "a/b", "f", &bytes.Buffer{}, func(written, _ int64) {
		if written > 0 {
			cancel()
		}
	})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHubFetcher_CancelledBeforeStart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(server.URL).Fetch(ctx, "a/b", "f", &bytes.Buffer{}, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHubFetcher_StalledBodyTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	f := newTestFetcher(server.URL)
	f.cfg.RequestTimeout = 100 * time.Millisecond

	start := time.Now()
	n, err := f.Fetch(context.Background(), "a/b", "f", &bytes.Buffer{}, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, platformerrors.CodeTimeout, platformerrors.GetCode(err))
	assert.True(t, platformerrors.IsRetryable(err))
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestHubFetcher_SteadyTransferOutlastsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 6; i++ {
			_, _ = w.Write([]byte("chunk"))
			w.(http.Flusher).Flush()
			time.Sleep(50 * time.Millisecond)
		}
	}))
	defer server.Close()

	f := newTestFetcher(server.URL)
	f.cfg.RequestTimeout = 150 * time.Millisecond

	var buf bytes.Buffer
	n, err := f.Fetch(context.Background(), "a/b", "f", &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(30), n)
	assert.Equal(t, "chunkchunkchunkchunkchunkchunk", buf.String())
}

func TestHubFetcher_SlowHeadersTimeOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := NewHubFetcher(domain.DownloadConfig{Endpoint: server.URL, RequestTimeout: 100 * time.Millisecond}, zap.NewNop())

	_, err := f.Fetch(context.Background(), "a/b", "f", &bytes.Buffer{}, nil)
	require.Error(t, err)
	assert.Equal(t, platformerrors.CodeTimeout, platformerrors.GetCode(err))
	assert.True(t, platformerrors.IsRetryable(err))
}
