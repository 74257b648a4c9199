package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func robotsServer(t *testing.T, robotsBody string, robotsStatus int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var robotsFetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsFetches.Add(1)
			w.WriteHeader(robotsStatus)
			w.Write([]byte(robotsBody))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, &robotsFetches
}

func TestRobotsGate_DisallowedPath(t *testing.T) {
	server, _ := robotsServer(t, "User-agent: *\nDisallow: /private/\n", http.StatusOK)
	rg := NewRobotsGate(fastFetcher(testClient()), "test-agent/1.0", testLogger())

	assert.False(t, rg.Allowed(context.Background(), server.URL+"/private/page"))
	assert.True(t, rg.Allowed(context.Background(), server.URL+"/public/page"))
}

func TestRobotsGate_CachesPerHost(t *testing.T) {
	server, fetches := robotsServer(t, "User-agent: *\nDisallow:\n", http.StatusOK)
	rg := NewRobotsGate(fastFetcher(testClient()), "test-agent/1.0", testLogger())

	for i := 0; i < 4; i++ {
		assert.True(t, rg.Allowed(context.Background(), server.URL+"/page"))
	}
	assert.Equal(t, int32(1), fetches.Load())
}

func TestRobotsGate_MissingRobotsAllows(t *testing.T) {
	server, _ := robotsServer(t, "not found", http.StatusNotFound)
	rg := NewRobotsGate(fastFetcher(testClient()), "test-agent/1.0", testLogger())

	assert.True(t, rg.Allowed(context.Background(), server.URL+"/anything"))
}

func TestRobotsGate_UnreachableHostAllows(t *testing.T) {
	rg := NewRobotsGate(fastFetcher(testClient()), "test-agent/1.0", testLogger())
	assert.True(t, rg.Allowed(context.Background(), "http://127.0.0.1:1/page"))
}
