package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mulay/internal/asset"
	"mulay/internal/event"
	"mulay/internal/logging"
	"mulay/internal/metrics"
	"mulay/internal/resources"
)

type testServer struct {
	server   *httptest.Server
	manager  *asset.Manager[*resources.Document]
	bus      *event.Bus[event.Event]
	registry *metrics.Registry
	logger   *logging.Logger
	dir      string
}

func newTestServer(t *testing.T, token string) *testServer {
	t.Helper()
	registry := &metrics.Registry{}
	logger := logging.NewLoggerWithOutput(logging.NewLogBuffer(32), logging.LevelDebug, nil)
	bus := event.NewBus[event.Event](context.Background(), event.BusOptions{Name: "api-test", Registry: registry})
	t.Cleanup(bus.Close)

	manager := asset.NewManager(resources.NewDocument,
		asset.WithName("documents"),
		asset.WithMetrics(registry),
		asset.WithEvents(bus),
		asset.WithLogger(logger),
	)
	t.Cleanup(func() { _ = manager.Close() })

	mux := http.NewServeMux()
	RegisterRoutes(mux, Options{
		Managers:  []AssetSource{manager},
		Events:    bus,
		Metrics:   registry,
		Logger:    logger,
		AuthToken: token,
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testServer{
		server:   server,
		manager:  manager,
		bus:      bus,
		registry: registry,
		logger:   logger,
		dir:      t.TempDir(),
	}
}

func (s *testServer) load(t *testing.T, id, name, content string) string {
	t.Helper()
	path := filepath.Join(s.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	_, err := s.manager.Load(id, path)
	require.NoError(t, err)
	return path
}

func (s *testServer) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + path
}

func TestListAssets(t *testing.T) {
	srv := newTestServer(t, "")
	srv.load(t, "palette", "palette.yaml", "primary: red\n")
	srv.load(t, "levels", "levels.json", `{"count": 3}`)

	resp, err := http.Get(srv.server.URL + "/api/assets")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store, must-revalidate", resp.Header.Get("Cache-Control"))

	var summaries []assetSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, "levels", summaries[0].ID)
	assert.Equal(t, "palette", summaries[1].ID)
	for _, summary := range summaries {
		assert.Equal(t, "documents", summary.Manager)
		assert.True(t, summary.Loaded)
		assert.True(t, filepath.IsAbs(summary.Path))
	}
}

func TestListAssetsFiltersByManager(t *testing.T) {
	srv := newTestServer(t, "")
	srv.load(t, "palette", "palette.yaml", "primary: red\n")

	resp, err := http.Get(srv.server.URL + "/api/assets?manager=shaders")
	require.NoError(t, err)
	defer resp.Body.Close()

	var summaries []assetSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	assert.Empty(t, summaries)
}

func TestAssetsRequiresToken(t *testing.T) {
	srv := newTestServer(t, "secret")

	resp, err := http.Get(srv.server.URL + "/api/assets")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.server.URL+"/api/assets", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAssetsRejectsPost(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Post(srv.server.URL+"/api/assets", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET", resp.Header.Get("Allow"))

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "method_not_allowed", body.Code)
}

func TestReloadEndpoint(t *testing.T) {
	srv := newTestServer(t, "")
	path := srv.load(t, "palette", "palette.yaml", "primary: red\n")

	handle, ok := srv.manager.Get("palette")
	require.True(t, ok)
	var before uint64
	require.NoError(t, handle.Do(func(doc *resources.Document) { before = doc.Revision() }))

	require.NoError(t, os.WriteFile(path, []byte("primary: blue\n"), 0o644))
	resp, err := http.Post(srv.server.URL+"/api/assets/documents/palette/reload", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, handle.Do(func(doc *resources.Document) {
		assert.NotEqual(t, before, doc.Revision())
		value, ok := doc.Lookup("primary")
		assert.True(t, ok)
		assert.Equal(t, "blue", value)
	}))
}

func TestReloadEndpointErrors(t *testing.T) {
	srv := newTestServer(t, "")
	path := srv.load(t, "palette", "palette.yaml", "primary: red\n")

	resp, err := http.Post(srv.server.URL+"/api/assets/shaders/palette/reload", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(srv.server.URL+"/api/assets/documents/missing/reload", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, os.WriteFile(path, []byte("primary: [unclosed\n"), 0o644))
	resp, err = http.Post(srv.server.URL+"/api/assets/documents/palette/reload", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "reload_failed", body.Code)
	assert.Contains(t, body.Error, "palette")
}

func TestVersionEndpoint(t *testing.T) {
	srv := newTestServer(t, "secret")

	resp, err := http.Get(srv.server.URL + "/api/version")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Contains(t, payload, "version")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, "")
	srv.load(t, "palette", "palette.yaml", "primary: red\n")

	resp, err := http.Get(srv.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mulay_asset_loads_total{manager="documents"} 1`)
}

func TestLogsEndpoint(t *testing.T) {
	srv := newTestServer(t, "")
	srv.logger.Warn("disk nearly full", nil)
	srv.load(t, "palette", "palette.yaml", "primary: red\n")

	resp, err := http.Get(srv.server.URL + "/api/logs?level=warning")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []logging.LogEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.NotEmpty(t, entries)
	for _, entry := range entries {
		assert.True(t, logging.LevelAtLeast(entry.Level, logging.LevelWarning))
	}

	resp, err = http.Get(srv.server.URL + "/api/logs?level=loud")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventsStreamDeliversAssetEvents(t *testing.T) {
	srv := newTestServer(t, "")

	conn, _, err := websocket.DefaultDialer.Dial(srv.wsURL("/api/events?types=asset_loaded"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return srv.bus.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	srv.bus.Publish(event.NewFileEvent("/tmp/ignored.vert", "WRITE"))
	srv.load(t, "palette", "palette.yaml", "primary: red\n")

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var payload event.AssetEvent
	require.NoError(t, conn.ReadJSON(&payload))
	assert.Equal(t, event.TypeAssetLoaded, payload.EventType)
	assert.Equal(t, "palette", payload.AssetID)
	assert.Equal(t, "documents", payload.Manager)
}

func TestEventsStreamRejectsUnknownType(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Get(srv.server.URL + "/api/events?types=bogus")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventsStreamUnauthorized(t *testing.T) {
	srv := newTestServer(t, "secret")

	_, resp, err := websocket.DefaultDialer.Dial(srv.wsURL("/api/events"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(srv.wsURL("/api/events?token=secret"), nil)
	require.NoError(t, err)
	conn.Close()
}

func TestEventsStreamUnavailableCloses(t *testing.T) {
	mux := http.NewServeMux()
	RegisterRoutes(mux, Options{})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/api/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var envelope wsErrorPayload
	require.NoError(t, conn.ReadJSON(&envelope))
	assert.Equal(t, "error", envelope.Type)
	assert.Equal(t, http.StatusServiceUnavailable, envelope.Status)

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected close error, got %T", err)
	assert.Equal(t, websocket.CloseTryAgainLater, closeErr.Code)
	assert.Equal(t, "event bus unavailable", closeErr.Text)
}

func TestEventsStreamClosesWithBus(t *testing.T) {
	srv := newTestServer(t, "")

	conn, _, err := websocket.DefaultDialer.Dial(srv.wsURL("/api/events"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return srv.bus.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)
	srv.bus.Close()

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected close error, got %T", err)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
}

func TestIsOriginAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://localhost:7777/api/events", nil)
	assert.True(t, isOriginAllowed(req, nil))

	req.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, isOriginAllowed(req, nil))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, isOriginAllowed(req, nil))
	assert.True(t, isOriginAllowed(req, []string{"evil.example"}))
}
