package controlplane

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/fimsync/internal/integrity"
	"github.com/openmined/fimsync/internal/transport"
)

type fakeEngine struct {
	status   integrity.Status
	waiting  bool
	triggers int
}

func (f *fakeEngine) Status() integrity.Status { return f.status }

func (f *fakeEngine) TriggerSync() bool {
	f.triggers++
	return f.waiting
}

type fakeTransport struct{}

func (fakeTransport) Stats() transport.Stats {
	return transport.Stats{Connected: true, MessagesSent: 3}
}

type fakeStore int

func (f fakeStore) Len() int { return int(f) }

func newTestServer(t *testing.T, engine *fakeEngine, token string) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := New(&Config{Addr: "127.0.0.1:0", AuthToken: token, AgentID: "agent-1"}, engine, fakeTransport{}, fakeStore(4))
	require.NoError(t, err)
	return s.Handler()
}

func do(h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRoutes_Public(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, "secret")

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/", "").Code)

	w := do(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/nope", "").Code)
}

func TestRoutes_RequireToken(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, "secret")

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/v1/status", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/v1/sync/now", "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/metrics", "").Code)
}

func TestRoutes_Status(t *testing.T) {
	engine := &fakeEngine{status: integrity.Status{
		Running:     true,
		RoundID:     1700000000,
		LastMessage: time.Now().Add(-time.Minute),
		QueueLen:    2,
		QueueCap:    16,
	}}
	h := newTestServer(t, engine, "secret")

	w := do(h, http.MethodGet, "/v1/status", "secret")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "agent-1", resp.AgentID)
	assert.Equal(t, 4, resp.Entries)
	assert.Equal(t, int64(1700000000), resp.Sync.RoundID)
	assert.Equal(t, 2, resp.Sync.QueueLen)
	assert.NotEmpty(t, resp.LastSeen)
	require.NotNil(t, resp.Transport)
	assert.True(t, resp.Transport.Connected)
	assert.Equal(t, int64(3), resp.Transport.MessagesSent)
}

func TestRoutes_SyncNow(t *testing.T) {
	engine := &fakeEngine{waiting: true}
	h := newTestServer(t, engine, "")

	assert.Equal(t, http.StatusAccepted, do(h, http.MethodPost, "/v1/sync/now", "").Code)

	engine.waiting = false
	assert.Equal(t, http.StatusConflict, do(h, http.MethodPost, "/v1/sync/now", "").Code)
	assert.Equal(t, 2, engine.triggers)
}

func TestRoutes_Metrics(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, "secret")

	w := do(h, http.MethodGet, "/metrics", "secret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestServer_ServeAndStop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s, err := New(&Config{Addr: "127.0.0.1:0"}, &fakeEngine{}, nil, fakeStore(0))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_StartBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s, err := New(&Config{Addr: ln.Addr().String()}, &fakeEngine{}, nil, fakeStore(0))
	require.NoError(t, err)
	assert.Error(t, s.Start(context.Background()))
}

func TestHostInfo(t *testing.T) {
	info := hostInfo()
	if info == nil {
		t.Skip("host info unavailable")
	}
	assert.NotEmpty(t, info.OS)
}
