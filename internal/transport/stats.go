package transport

import (
	"sync/atomic"
	"time"

	"github.com/openmined/fimsync/internal/metrics"
)

var (
	bytesTotal = metrics.NewCounter(
		"bytes_total",
		"transport",
		"Websocket payload bytes by direction",
		[]string{"direction"},
	)
	reconnectsTotal = metrics.NewCounter(
		"reconnects_total",
		"transport",
		"Websocket disconnects followed by a reconnect attempt",
		[]string{},
	).WithLabelValues()
)

// stats tracks websocket telemetry across reconnects
type stats struct {
	bytesSent      atomic.Int64
	bytesRecv      atomic.Int64
	msgsSent       atomic.Int64
	msgsRecv       atomic.Int64
	lastSentNs     atomic.Int64
	lastRecvNs     atomic.Int64
	lastPingNs     atomic.Int64
	connectedAtNs  atomic.Int64
	disconnAtNs    atomic.Int64
	reconnects     atomic.Int64
	lastErrorValue atomic.Value // string
}

func newStats() *stats {
	s := &stats{}
	s.lastErrorValue.Store("")
	return s
}

func (s *stats) onConnected() {
	s.connectedAtNs.Store(time.Now().UnixNano())
}

func (s *stats) onDisconnected() {
	s.disconnAtNs.Store(time.Now().UnixNano())
	s.reconnects.Add(1)
	reconnectsTotal.Inc()
}

func (s *stats) onSend(n int) {
	s.msgsSent.Add(1)
	s.bytesSent.Add(int64(n))
	s.lastSentNs.Store(time.Now().UnixNano())
	bytesTotal.WithLabelValues("tx").Add(float64(n))
}

func (s *stats) onRecv(n int) {
	s.msgsRecv.Add(1)
	s.bytesRecv.Add(int64(n))
	s.lastRecvNs.Store(time.Now().UnixNano())
	bytesTotal.WithLabelValues("rx").Add(float64(n))
}

func (s *stats) onPing() {
	s.lastPingNs.Store(time.Now().UnixNano())
}

func (s *stats) setLastError(err error) {
	if err == nil {
		return
	}
	s.lastErrorValue.Store(err.Error())
}

// Stats is a JSON friendly view of the connection state
type Stats struct {
	Connected        bool   `json:"connected"`
	ReconnectAttempt int    `json:"reconnectAttempt"`
	Reconnects       int64  `json:"reconnects"`
	TxQueueLen       int    `json:"txQueueLen"`
	MessagesSent     int64  `json:"messagesSent"`
	MessagesRecv     int64  `json:"messagesRecv"`
	BytesSent        int64  `json:"bytesSent"`
	BytesRecv        int64  `json:"bytesRecv"`
	ConnectedAtNs    int64  `json:"connectedAtNs,omitempty"`
	DisconnectedAtNs int64  `json:"disconnectedAtNs,omitempty"`
	LastSentAtNs     int64  `json:"lastSentAtNs,omitempty"`
	LastRecvAtNs     int64  `json:"lastRecvAtNs,omitempty"`
	LastPingAtNs     int64  `json:"lastPingAtNs,omitempty"`
	LastError        string `json:"lastError,omitempty"`
}

func (s *stats) snapshot() Stats {
	lastErr, _ := s.lastErrorValue.Load().(string)
	return Stats{
		Reconnects:       s.reconnects.Load(),
		MessagesSent:     s.msgsSent.Load(),
		MessagesRecv:     s.msgsRecv.Load(),
		BytesSent:        s.bytesSent.Load(),
		BytesRecv:        s.bytesRecv.Load(),
		ConnectedAtNs:    s.connectedAtNs.Load(),
		DisconnectedAtNs: s.disconnAtNs.Load(),
		LastSentAtNs:     s.lastSentNs.Load(),
		LastRecvAtNs:     s.lastRecvNs.Load(),
		LastPingAtNs:     s.lastPingNs.Load(),
		LastError:        lastErr,
	}
}
