package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	wm := newWorkloadManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(newMux(wm))
	t.Cleanup(func() {
		wm.mu.Lock()
		for _, cancel := range wm.cancels {
			cancel()
		}
		wm.mu.Unlock()
		srv.Close()
	})
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func post(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Post(url, "text/plain", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestServer_Endpoints(t *testing.T) {
	srv := newServer(t)

	code, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "# TYPE gremlin_supersteps_total counter")

	code, body = get(t, srv.URL+"/debug/vars")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "gremlin_supersteps_total")

	code, _ = get(t, srv.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_Workloads(t *testing.T) {
	srv := newServer(t)

	assert.Equal(t, http.StatusAccepted, post(t, srv.URL+"/workload/pagerank/start?rate_ms=5&vertices=10"))
	assert.Equal(t, http.StatusConflict, post(t, srv.URL+"/workload/pagerank/start"))
	assert.Equal(t, http.StatusAccepted, post(t, srv.URL+"/workload/traversal/start?rate_ms=5&vertices=10"))
	assert.Equal(t, http.StatusNotFound, post(t, srv.URL+"/workload/bogus/start"))

	assert.Equal(t, http.StatusOK, post(t, srv.URL+"/workload/pagerank/stop"))
	assert.Equal(t, http.StatusOK, post(t, srv.URL+"/workload/traversal/stop"))
	assert.Equal(t, http.StatusAccepted, post(t, srv.URL+"/workload/pagerank/start?rate_ms=5&vertices=10"))
}

func TestSyntheticGraph(t *testing.T) {
	g := syntheticGraph(20, 3)
	vertices, edges := g.Stats()
	assert.Equal(t, 20, vertices)
	assert.LessOrEqual(t, edges, 60)
}
