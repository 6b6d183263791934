package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	socketChannelSize  = 256
	socketPingPeriod   = 15 * time.Second
	socketPingTimeout  = 5 * time.Second
	socketWriteTimeout = 5 * time.Second
)

// socket is one live websocket connection with its read and write loops
type socket struct {
	conn      *websocket.Conn
	rx        chan string
	tx        chan string
	closed    chan struct{}
	closing   chan struct{}
	stats     *stats
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSocket(conn *websocket.Conn, st *stats) *socket {
	return &socket{
		conn:    conn,
		rx:      make(chan string, socketChannelSize),
		tx:      make(chan string, socketChannelSize),
		closed:  make(chan struct{}),
		closing: make(chan struct{}),
		stats:   st,
	}
}

func (s *socket) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.writeLoop(ctx)
	go s.readLoop(ctx)
}

func (s *socket) Close() {
	s.closeConnection(websocket.StatusNormalClosure, "shutdown")
}

func (s *socket) closeConnection(status websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.conn.Close(status, reason)

		go func() {
			s.wg.Wait()
			close(s.rx)
			close(s.closed)
		}()
	})
}

func (s *socket) readLoop(ctx context.Context) {
	defer func() {
		slog.Debug("socket reader shutdown")
		s.wg.Done()
		s.closeConnection(websocket.StatusNormalClosure, "shutdown")
	}()

	for ctx.Err() == nil {
		typ, raw, err := s.conn.Read(ctx)
		if err != nil {
			if !isExpectedCloseError(err) {
				slog.Warn("socket RECV", "error", err)
				s.stats.setLastError(err)
			}
			return
		}

		if typ != websocket.MessageText {
			slog.Warn("socket RECV unexpected frame", "type", typ, "size", len(raw))
			continue
		}
		s.stats.onRecv(len(raw))

		// a full rx stalls the websocket read until the consumer catches up
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		case s.rx <- string(raw):
		}
	}
}

func (s *socket) writeLoop(ctx context.Context) {
	pingTicker := time.NewTicker(socketPingPeriod)
	defer func() {
		slog.Debug("socket writer shutdown")
		pingTicker.Stop()
		s.wg.Done()
		s.closeConnection(websocket.StatusNormalClosure, "shutdown")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.closing:
			return

		case payload := <-s.tx:
			ctxWrite, cancel := context.WithTimeout(ctx, socketWriteTimeout)
			err := s.conn.Write(ctxWrite, websocket.MessageText, []byte(payload))
			cancel()

			if err != nil {
				slog.Error("socket SEND", "error", err)
				s.stats.setLastError(err)
				return
			}
			s.stats.onSend(len(payload))

		case <-pingTicker.C:
			ctxPing, cancel := context.WithTimeout(ctx, socketPingTimeout)
			err := s.conn.Ping(ctxPing)
			cancel()

			if err != nil {
				slog.Error("socket PING", "error", err)
				s.stats.setLastError(err)
				return
			}
			s.stats.onPing()
		}
	}
}

// isExpectedCloseError returns true if the error is an expected connection closure
func isExpectedCloseError(err error) bool {
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return true
	}

	return errors.Is(err, io.EOF) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed)
}
