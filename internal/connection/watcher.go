// Package connection tracks whether the configured RPC endpoint is reachable
// and what its head block is.
package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is how often the head block is polled.
const DefaultInterval = time.Second

// ErrAlreadyRunning is returned by Start on a watcher that is already polling.
var ErrAlreadyRunning = errors.New("watcher already running")

// Status is the reachability of the endpoint.
type Status int

const (
	StatusUnknown Status = iota
	StatusConnected
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// State is one observation of the endpoint. BlockNumber is only meaningful
// while Status is StatusConnected.
type State struct {
	RPC         string
	Status      Status
	BlockNumber uint64
	Err         error
	UpdatedAt   time.Time
}

// Connected reports whether the last poll succeeded.
func (s State) Connected() bool { return s.Status == StatusConnected }

// HeadSource returns the current head height.
type HeadSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Listener is told about every state the watcher records.
type Listener interface {
	ConnectionChanged(s State)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the logger used for state transitions.
func WithLogger(log zerolog.Logger) Option {
	return func(w *Watcher) { w.log = log }
}

// WithListener reports every recorded state to l.
func WithListener(l Listener) Option {
	return func(w *Watcher) { w.listener = l }
}

// Watcher polls a HeadSource on a fixed interval and owns the resulting
// connection state. The zero value is not usable; call New.
type Watcher struct {
	rpc      string
	source   HeadSource
	interval time.Duration
	log      zerolog.Logger
	listener Listener

	mu     sync.Mutex
	state  State
	subs   map[int]chan State
	nextID int
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a watcher for the endpoint named rpc.
func New(rpc string, source HeadSource, opts ...Option) *Watcher {
	w := &Watcher{
		rpc:      rpc,
		source:   source,
		interval: DefaultInterval,
		log:      zerolog.Nop(),
		state:    State{RPC: rpc, Status: StatusUnknown},
		subs:     make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start polls once immediately and then every interval until ctx is done or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	go w.loop(ctx, done)
	return nil
}

// Stop halts polling and waits for the loop to exit. It is safe to call on a
// watcher that is not running.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the poll loop is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

// State returns the latest recorded state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Subscribe returns a channel that always holds the most recent state. A slow
// reader skips intermediate states. The channel is primed with the current
// state. Call the returned func to unsubscribe.
func (w *Watcher) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = ch
	ch <- w.state
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
		})
	}
}

// Poll runs a single probe and records its result.
func (w *Watcher) Poll(ctx context.Context) State {
	head, err := w.source.BlockNumber(ctx)
	next := State{RPC: w.rpc, UpdatedAt: time.Now()}
	if err != nil {
		next.Status = StatusDisconnected
		next.Err = err
	} else {
		next.Status = StatusConnected
		next.BlockNumber = head
	}
	w.record(next)
	return next
}

func (w *Watcher) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		w.mu.Lock()
		w.cancel = nil
		w.done = nil
		w.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

func (w *Watcher) record(next State) {
	w.mu.Lock()
	prev := w.state
	// A poll cut short by Stop says nothing about the endpoint.
	if next.Err != nil && errors.Is(next.Err, context.Canceled) {
		w.mu.Unlock()
		return
	}
	w.state = next
	for _, ch := range w.subs {
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
	w.mu.Unlock()

	if prev.Status != next.Status {
		ev := w.log.Info()
		if next.Status == StatusDisconnected {
			ev = w.log.Warn().Err(next.Err)
		}
		ev.Str("rpc", w.rpc).Str("status", next.Status.String()).Uint64("head", next.BlockNumber).Msg("connection state changed")
	}
	if w.listener != nil {
		w.listener.ConnectionChanged(next)
	}
}
