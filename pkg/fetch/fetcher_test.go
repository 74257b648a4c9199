package fetch

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// testClient returns an http.Client suitable for testing
func testClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// fastFetcher builds a Fetcher with millisecond backoff and a gate fast
// enough not to dominate test time.
func fastFetcher(client *http.Client) *Fetcher {
	return NewFetcher(client, NewGate(1000), "test-agent/1.0", 5*time.Millisecond, testLogger())
}

// mockServer creates an httptest.Server that returns status codes in
// sequence, repeating the last one once the sequence is exhausted.
// Returns the server and an atomic counter tracking request attempts.
func mockServer(t *testing.T, statusCodes []int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(attempts.Add(1)) - 1
		if n >= len(statusCodes) {
			n = len(statusCodes) - 1
		}
		w.WriteHeader(statusCodes[n])
		w.Write([]byte("body"))
	}))
	t.Cleanup(server.Close)
	return server, &attempts
}

func TestFetchWithRetry_SuccessFirstTry(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusOK})
	f := fastFetcher(testClient())

	resp, err := f.FetchWithRetry(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetchWithRetry_TransientThenSuccess(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusServiceUnavailable, http.StatusOK})
	f := fastFetcher(testClient())

	resp, err := f.FetchWithRetry(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestFetchWithRetry_ExhaustsRetries(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusServiceUnavailable})
	f := fastFetcher(testClient())

	resp, err := f.FetchWithRetry(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The last response comes back as a normal result after exactly
	// three attempts; the caller decides whether 503 is an error.
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestFetchWithRetry_NonTransientNotRetried(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusNotFound})
	f := fastFetcher(testClient())

	resp, err := f.FetchWithRetry(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetchWithRetry_TransportErrorImmediate(t *testing.T) {
	f := fastFetcher(testClient())

	start := time.Now()
	resp, err := f.FetchWithRetry(context.Background(), "http://127.0.0.1:1/unreachable")
	assert.Error(t, err)
	assert.Nil(t, resp)
	assert.Less(t, time.Since(start), 5*time.Second, "transport errors must not burn the retry budget")
}

func TestFetchWithRetry_SetsUserAgent(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	f := fastFetcher(testClient())
	resp, err := f.FetchWithRetry(context.Background(), server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "test-agent/1.0", gotAgent)
}

func TestFetchWithRetry_DecodesGzipResponses(t *testing.T) {
	const page = "<html><body>hello</body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			w.Write([]byte(page))
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte(page))
		gz.Close()
	}))
	t.Cleanup(server.Close)

	f := fastFetcher(testClient())
	resp, err := f.FetchWithRetry(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, page, string(body))
}

func TestFetchWithRetry_ContextCancelled(t *testing.T) {
	server, _ := mockServer(t, []int{http.StatusOK})
	f := fastFetcher(testClient())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.FetchWithRetry(ctx, server.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransientStatuses(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, transientStatuses[code], "status %d should be transient", code)
	}
	for _, code := range []int{200, 301, 400, 403, 404, 501} {
		assert.False(t, transientStatuses[code], "status %d should not be transient", code)
	}
}
