package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/fimsync/internal/config"
	"github.com/openmined/fimsync/internal/syncmsg"
	"github.com/openmined/fimsync/internal/transport"
)

func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	root := t.TempDir()
	monitored := filepath.Join(root, "etc")
	require.NoError(t, os.MkdirAll(monitored, 0o755))
	for _, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, os.WriteFile(filepath.Join(monitored, name), []byte("content of "+name), 0o644))
	}

	return &config.Config{
		StorePath:           filepath.Join(root, "fim.db"),
		ServerURL:           serverURL,
		AgentID:             "agent-test",
		Directories:         []string{monitored},
		ScanInterval:        time.Hour,
		SyncInterval:        time.Hour,
		SyncResponseTimeout: time.Minute,
		SyncQueueSize:       64,
	}
}

func TestScanOnceAndJournalDigest(t *testing.T) {
	cfg := testConfig(t, "")

	result, err := ScanOnce(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Added)

	result, err = ScanOnce(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 4, result.Unchanged)

	summary, err := JournalDigest(cfg.StorePath)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Count)
	assert.Equal(t, filepath.Join(cfg.Directories[0], "a"), summary.Begin)
	assert.Equal(t, filepath.Join(cfg.Directories[0], "d"), summary.End)
	assert.Len(t, summary.Checksum, 40)
}

func TestNew_RequiresServer(t *testing.T) {
	cfg := testConfig(t, "")
	_, err := New(cfg)
	assert.ErrorIs(t, err, transport.ErrNoServerURL)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Directories = nil
	_, err := New(cfg)
	assert.ErrorIs(t, err, config.ErrNoDirectories)
}

// fakeManager answers the first global digest with a checksum_fail over the
// announced range and records what the agent sends back
func fakeManager(t *testing.T) (*httptest.Server, <-chan *syncmsg.Message) {
	t.Helper()
	received := make(chan *syncmsg.Message, 64)

	mux := http.NewServeMux()
	mux.HandleFunc(transport.SyncPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		answered := false
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			msg, err := syncmsg.Parse(string(data))
			if err != nil {
				t.Errorf("bad payload %q: %v", data, err)
				return
			}
			received <- msg

			if msg.Type != syncmsg.MsgGlobalDigest || answered {
				continue
			}
			answered = true
			check := msg.Data.(syncmsg.Check)
			reply := fmt.Sprintf(`checksum_fail {"id":%d,"begin":%q,"end":%q}`, check.ID, check.Begin, check.End)
			if err := conn.Write(ctx, websocket.MessageText, []byte(reply)); err != nil {
				return
			}
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, received
}

func TestAgent_SyncRoundTrip(t *testing.T) {
	srv, received := fakeManager(t)
	cfg := testConfig(t, srv.URL)

	a, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()
	defer func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(15 * time.Second):
			t.Error("agent did not stop")
		}
	}()

	// the first digest may go out before the socket is up
	require.Eventually(t, func() bool {
		return a.client.IsConnected() && a.engine.TriggerSync()
	}, 10*time.Second, 10*time.Millisecond)

	got := map[syncmsg.MessageType]syncmsg.Check{}
	timeout := time.After(10 * time.Second)
	for len(got) < 3 {
		select {
		case msg := <-received:
			if check, ok := msg.Data.(syncmsg.Check); ok {
				got[msg.Type] = check
			}
		case <-timeout:
			t.Fatalf("incomplete exchange: %v", got)
		}
	}

	dir := cfg.Directories[0]
	global := got[syncmsg.MsgGlobalDigest]
	assert.Equal(t, filepath.Join(dir, "a"), global.Begin)
	assert.Equal(t, filepath.Join(dir, "d"), global.End)

	left := got[syncmsg.MsgDigestLeft]
	assert.Equal(t, filepath.Join(dir, "a"), left.Begin)
	assert.Equal(t, filepath.Join(dir, "b"), left.End)
	assert.Equal(t, filepath.Join(dir, "c"), left.Tail)

	right := got[syncmsg.MsgDigestRight]
	assert.Equal(t, filepath.Join(dir, "c"), right.Begin)
	assert.Equal(t, filepath.Join(dir, "d"), right.End)
	assert.Equal(t, left.ID, right.ID)
}
