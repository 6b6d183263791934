package transport

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	reconnectDelay    = 1 * time.Second
	maxReconnectDelay = 8 * time.Second
	connectTimeout    = 10 * time.Second
	maxMessageSize    = 4 * 1024 * 1024
	SyncPath          = "/api/v1/agents/sync"

	HeaderAgentID = "X-Agent-ID"
)

// Handler receives every inbound text payload, in arrival order. ctx ends
// when the client is shutting down.
type Handler func(ctx context.Context, payload string)

type Config struct {
	ServerURL string
	Token     string
	AgentID   string
}

// Client keeps one websocket to the manager open, reconnecting with
// backoff, and moves text payloads in both directions.
type Client struct {
	config  Config
	handler Handler
	stats   *stats

	mu               sync.RWMutex
	socket           *socket
	reconnectAttempt int

	baseDelay time.Duration
	maxDelay  time.Duration
}

func NewClient(config Config, handler Handler) (*Client, error) {
	if config.ServerURL == "" {
		return nil, ErrNoServerURL
	}
	if _, err := url.Parse(config.ServerURL); err != nil {
		return nil, fmt.Errorf("transport: invalid server url: %w", err)
	}

	return &Client{
		config:    config,
		handler:   handler,
		stats:     newStats(),
		baseDelay: reconnectDelay,
		maxDelay:  maxReconnectDelay,
	}, nil
}

// Run connects and keeps the connection alive until ctx is cancelled
func (c *Client) Run(ctx context.Context) error {
	delay := c.baseDelay

	for {
		connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		s, err := c.connect(connCtx, ctx)
		cancel()

		if err == nil {
			delay = c.baseDelay
			c.consume(ctx, s)
			c.disconnected(s)
		} else {
			c.mu.Lock()
			c.reconnectAttempt++
			attempt := c.reconnectAttempt
			c.mu.Unlock()

			c.stats.setLastError(err)
			slog.Warn("transport connect", "attempt", attempt, "delay", delay, "error", err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if err != nil {
			delay = min(delay*2, c.maxDelay)
			jitterFactor := 0.75 + (rand.Float64() * 0.5)
			delay = time.Duration(float64(delay) * jitterFactor)
		}
	}
}

func (c *Client) connect(dialCtx, runCtx context.Context) (*socket, error) {
	wsURL, err := c.syncURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.config.Token != "" {
		header.Set("Authorization", "Bearer "+c.config.Token)
	}
	if c.config.AgentID != "" {
		header.Set(HeaderAgentID, c.config.AgentID)
	}

	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: failed to connect to %s: %w", wsURL, err)
	}
	conn.SetReadLimit(maxMessageSize)

	s := newSocket(conn, c.stats)
	s.Start(runCtx)

	c.mu.Lock()
	c.socket = s
	c.reconnectAttempt = 0
	c.mu.Unlock()

	c.stats.onConnected()
	slog.Info("transport connected", "url", wsURL)
	return s, nil
}

// consume hands inbound payloads to the handler until the socket closes
func (c *Client) consume(ctx context.Context, s *socket) {
	for {
		select {
		case <-ctx.Done():
			s.Close()
			<-s.closed
			return
		case payload, ok := <-s.rx:
			if !ok {
				return
			}
			slog.Debug("transport rx", "size", len(payload))
			if c.handler != nil {
				c.handler(ctx, payload)
			}
		}
	}
}

func (c *Client) disconnected(s *socket) {
	c.mu.Lock()
	if c.socket == s {
		c.socket = nil
	}
	c.mu.Unlock()

	c.stats.onDisconnected()
	slog.Info("transport disconnected")
}

// Send queues payload for the write loop without blocking
func (c *Client) Send(ctx context.Context, payload string) error {
	c.mu.RLock()
	s := c.socket
	c.mu.RUnlock()

	if s == nil {
		return ErrNotConnected
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closing:
		return ErrNotConnected
	case s.tx <- payload:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.socket != nil
}

func (c *Client) Stats() Stats {
	c.mu.RLock()
	s := c.socket
	attempt := c.reconnectAttempt
	c.mu.RUnlock()

	snap := c.stats.snapshot()
	snap.Connected = s != nil
	snap.ReconnectAttempt = attempt
	if s != nil {
		snap.TxQueueLen = len(s.tx)
	}
	return snap
}

func (c *Client) syncURL() (string, error) {
	full, err := url.JoinPath(c.config.ServerURL, SyncPath)
	if err != nil {
		return "", fmt.Errorf("transport: failed to join path: %w", err)
	}
	return toWebsocketURL(full), nil
}

// toWebsocketURL converts an HTTP URL to a WebSocket URL
func toWebsocketURL(u string) string {
	if strings.HasPrefix(u, "https://") {
		return "wss://" + u[8:]
	} else if strings.HasPrefix(u, "http://") {
		return "ws://" + u[7:]
	}
	return u
}
