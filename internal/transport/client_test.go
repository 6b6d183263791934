package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	conns    atomic.Int32
	received chan string
	headers  chan http.Header
}

// newTestServer accepts agents on the sync path. Each connection gets
// greeting (if set), then every frame the agent sends is recorded. When
// dropFirst is true the first connection is closed right away.
func newTestServer(t *testing.T, greeting string, dropFirst bool) *testServer {
	t.Helper()
	ts := &testServer{
		received: make(chan string, 16),
		headers:  make(chan http.Header, 16),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(SyncPath, func(w http.ResponseWriter, r *http.Request) {
		n := ts.conns.Add(1)
		ts.headers <- r.Header.Clone()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		if dropFirst && n == 1 {
			conn.Close(websocket.StatusGoingAway, "restart")
			return
		}

		ctx := r.Context()
		if greeting != "" {
			if err := conn.Write(ctx, websocket.MessageText, []byte(greeting)); err != nil {
				return
			}
		}

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			ts.received <- string(data)
		}
	})

	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func startClient(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("client did not stop")
		}
	})
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.ErrorIs(t, err, ErrNoServerURL)
}

func TestClient_SendNotConnected(t *testing.T) {
	c, err := NewClient(Config{ServerURL: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, c.Send(context.Background(), "x"), ErrNotConnected)
	assert.False(t, c.IsConnected())
	assert.False(t, c.Stats().Connected)
}

func TestClient_RoundTrip(t *testing.T) {
	greeting := `checksum_fail {"id":1,"begin":"a","end":"b"}`
	srv := newTestServer(t, greeting, false)

	inbound := make(chan string, 4)
	c, err := NewClient(Config{ServerURL: srv.URL, Token: "secret", AgentID: "agent-1"}, func(_ context.Context, payload string) {
		inbound <- payload
	})
	require.NoError(t, err)
	startClient(t, c)

	select {
	case got := <-inbound:
		assert.Equal(t, greeting, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no inbound payload")
	}

	header := <-srv.headers
	assert.Equal(t, "Bearer secret", header.Get("Authorization"))
	assert.Equal(t, "agent-1", header.Get(HeaderAgentID))

	require.Eventually(t, c.IsConnected, 5*time.Second, 10*time.Millisecond)
	payload := `{"component":"syscheck","type":"integrity_clear","data":{"id":0}}`
	require.NoError(t, c.Send(context.Background(), payload))

	select {
	case got := <-srv.received:
		assert.Equal(t, payload, got)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not receive payload")
	}

	require.Eventually(t, func() bool { return c.Stats().MessagesSent == 1 }, 5*time.Second, 10*time.Millisecond)
	stats := c.Stats()
	assert.True(t, stats.Connected)
	assert.Equal(t, int64(1), stats.MessagesRecv)
	assert.Equal(t, int64(len(greeting)), stats.BytesRecv)
}

func TestClient_SlowHandlerLosesNothing(t *testing.T) {
	const frames = socketChannelSize*2 + 88

	mux := http.NewServeMux()
	mux.HandleFunc(SyncPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		for i := 0; i < frames; i++ {
			if err := conn.Write(ctx, websocket.MessageText, []byte(strconv.Itoa(i))); err != nil {
				return
			}
		}
		<-ctx.Done()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	gate := make(chan struct{})
	var mu sync.Mutex
	var got []string
	c, err := NewClient(Config{ServerURL: srv.URL}, func(ctx context.Context, payload string) {
		select {
		case <-gate:
		case <-ctx.Done():
			return
		}
		mu.Lock()
		got = append(got, payload)
		mu.Unlock()
	})
	require.NoError(t, err)
	startClient(t, c)

	require.Eventually(t, c.IsConnected, 5*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	close(gate)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == frames
	}, 10*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, payload := range got {
		assert.Equal(t, strconv.Itoa(i), payload)
	}
}

func TestClient_Reconnects(t *testing.T) {
	srv := newTestServer(t, "", true)

	c, err := NewClient(Config{ServerURL: srv.URL}, nil)
	require.NoError(t, err)
	c.baseDelay = 10 * time.Millisecond
	c.maxDelay = 20 * time.Millisecond
	startClient(t, c)

	require.Eventually(t, func() bool {
		return srv.conns.Load() >= 2 && c.IsConnected()
	}, 10*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, c.Stats().Reconnects, int64(1))
}

func TestClient_RetriesWhenServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := NewClient(Config{ServerURL: srv.URL}, nil)
	require.NoError(t, err)
	c.baseDelay = 5 * time.Millisecond
	c.maxDelay = 10 * time.Millisecond
	startClient(t, c)

	require.Eventually(t, func() bool { return c.Stats().ReconnectAttempt >= 2 }, 5*time.Second, 5*time.Millisecond)
	assert.NotEmpty(t, c.Stats().LastError)
}

func TestToWebsocketURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8080/api/v1/agents/sync", "ws://localhost:8080/api/v1/agents/sync"},
		{"https://manager.example.com/api/v1/agents/sync", "wss://manager.example.com/api/v1/agents/sync"},
		{"ws://already", "ws://already"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toWebsocketURL(tt.in))
	}
}
