package integrity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/openmined/fimsync/internal/fimstore"
	"github.com/openmined/fimsync/internal/queue"
	"github.com/openmined/fimsync/internal/syncmsg"
)

const (
	DefaultSyncInterval    = 300 * time.Second
	DefaultResponseTimeout = 30 * time.Second
	DefaultQueueSize       = 16384
	DefaultMaxEPS          = 10
)

var (
	ErrEntryVanished = errors.New("entry vanished under store lock")
	ErrNotRunning    = errors.New("sync engine is not running")
)

// EntryStore is the ordered view of monitored entries the engine reads.
// Keys, Range and Get require the caller to hold the lock.
type EntryStore interface {
	Lock()
	Unlock()
	Keys() []string
	Range(begin, end string) []string
	Get(key string) (*fimstore.Entry, bool)
}

// Sender delivers one wire payload to the manager
type Sender interface {
	Send(ctx context.Context, payload string) error
}

type Config struct {
	SyncInterval    time.Duration
	ResponseTimeout time.Duration
	QueueSize       int
	// MaxEPS caps outbound messages per second, 0 disables the cap
	MaxEPS int
}

func DefaultConfig() Config {
	return Config{
		SyncInterval:    DefaultSyncInterval,
		ResponseTimeout: DefaultResponseTimeout,
		QueueSize:       DefaultQueueSize,
		MaxEPS:          DefaultMaxEPS,
	}
}

type Option func(*Engine)

func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// Status is a point in time view of the engine for the control plane
type Status struct {
	Running     bool      `json:"running"`
	RoundID     int64     `json:"roundId"`
	RoundStart  time.Time `json:"roundStart"`
	LastMessage time.Time `json:"lastMessage"`
	QueueLen    int       `json:"queueLen"`
	QueueCap    int       `json:"queueCap"`
}

// Engine runs the integrity synchronization loop: announce a global digest,
// then answer manager commands until the watchdog deadline passes.
type Engine struct {
	store   EntryStore
	sender  Sender
	cfg     Config
	clock   clockwork.Clock
	limiter *rate.Limiter

	queue   atomic.Pointer[queue.Queue[string]]
	session session
	// snapshot of session for readers outside the loop
	published atomic.Pointer[session]

	wakeMu sync.Mutex
	wake   context.CancelFunc
}

func NewEngine(store EntryStore, sender Sender, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		sender: sender,
		cfg:    cfg,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if cfg.MaxEPS > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.MaxEPS), cfg.MaxEPS)
	}
	e.publishSession()
	return e
}

// Run blocks until ctx is cancelled. It fails only when the inbound queue
// cannot be created.
func (e *Engine) Run(ctx context.Context) error {
	q, err := queue.New[string](e.cfg.QueueSize, queue.WithClock(e.clock))
	if err != nil {
		return fmt.Errorf("create sync queue: %w", err)
	}
	e.queue.Store(q)
	defer e.queue.Store(nil)

	slog.Info("sync engine start", "interval", e.cfg.SyncInterval, "responseTimeout", e.cfg.ResponseTimeout, "queueSize", e.cfg.QueueSize, "maxEps", e.cfg.MaxEPS)

	for ctx.Err() == nil {
		e.syncChecksum(ctx)
		e.drain(ctx, q)
	}

	slog.Info("sync engine stopped")
	return ctx.Err()
}

// drain dispatches queued commands until the watchdog deadline passes or
// TriggerSync asks for an early round.
func (e *Engine) drain(ctx context.Context, q *queue.Queue[string]) {
	waitCtx, cancel := context.WithCancel(ctx)
	e.wakeMu.Lock()
	e.wake = cancel
	e.wakeMu.Unlock()

	defer func() {
		e.wakeMu.Lock()
		e.wake = nil
		e.wakeMu.Unlock()
		cancel()
	}()

	for waitCtx.Err() == nil {
		deadline := e.session.deadline(e.cfg.SyncInterval, e.cfg.ResponseTimeout)
		payload, ok := q.PopContext(waitCtx, deadline)
		if !ok {
			return
		}
		e.dispatch(ctx, payload)
	}
}

// Push hands an inbound manager payload to the engine. It blocks while the
// queue is full.
func (e *Engine) Push(payload string) {
	q := e.queue.Load()
	if q == nil {
		slog.Warn("sync queue not ready, dropping message", "payload", payload)
		queueDropped.Inc()
		return
	}
	if err := q.Push(context.Background(), payload); err != nil {
		slog.Error("sync queue push", "error", err)
		queueDropped.Inc()
	}
}

// PushContext is Push that gives up when ctx ends
func (e *Engine) PushContext(ctx context.Context, payload string) error {
	q := e.queue.Load()
	if q == nil {
		queueDropped.Inc()
		return ErrNotRunning
	}
	if err := q.Push(ctx, payload); err != nil {
		queueDropped.Inc()
		return fmt.Errorf("sync queue push: %w", err)
	}
	return nil
}

// TriggerSync ends the current wait so a new global round starts. Commands
// still queued are handled in the next round. It reports whether the loop
// was waiting.
func (e *Engine) TriggerSync() bool {
	e.wakeMu.Lock()
	defer e.wakeMu.Unlock()
	if e.wake == nil {
		return false
	}
	e.wake()
	return true
}

func (e *Engine) Status() Status {
	s := e.published.Load()
	st := Status{
		RoundID:     s.roundID,
		RoundStart:  s.roundStart,
		LastMessage: s.lastMessage,
	}
	if q := e.queue.Load(); q != nil {
		st.Running = true
		st.QueueLen = q.Len()
		st.QueueCap = q.Cap()
	}
	return st
}

func (e *Engine) publishSession() {
	s := e.session
	e.published.Store(&s)
	roundID.Set(float64(s.roundID))
}

func (e *Engine) send(ctx context.Context, msg *syncmsg.Message) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			slog.Debug("sync send throttled", "type", msg.Type, "error", err)
			return
		}
	}

	payload, err := msg.Marshal()
	if err != nil {
		slog.Error("sync send", "type", msg.Type, "error", err)
		return
	}

	if err := e.sender.Send(ctx, payload); err != nil {
		slog.Warn("sync send", "type", msg.Type, "error", err)
		sendErrors.Inc()
		return
	}

	slog.Debug("sync send", "type", msg.Type)
	messagesSent.WithLabelValues(msg.Type.String()).Inc()
}
