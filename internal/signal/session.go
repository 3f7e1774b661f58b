// Package signal implements server signals: a session owns one state value
// and pushes every mutation of it to a single peer at a fixed cadence.
package signal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Sender delivers one encoded message to the peer. A failed delivery must be
// reported as an error; CloseError lets the sender classify it.
type Sender interface {
	Send(data []byte) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(data []byte) error

func (f SenderFunc) Send(data []byte) error {
	return f(data)
}

// Termination describes how a session loop ended.
type Termination struct {
	Cause Cause
	Err   error
	// Ticks counts mutations applied, Sent counts messages delivered.
	Ticks uint64
	Sent  uint64
}

// Status is a point-in-time view of a running session.
type Status struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Seq   uint64 `json:"seq"`
	Value any    `json:"value"`
}

// Observer receives session lifecycle events. Calls are made from the
// session goroutine and must not block.
type Observer interface {
	SessionStarted(id string)
	MessageSent(id string, seq uint64, elapsed time.Duration)
	SessionEnded(id string, t Termination)
}

type nopObserver struct{}

func (nopObserver) SessionStarted(string)                     {}
func (nopObserver) MessageSent(string, uint64, time.Duration) {}
func (nopObserver) SessionEnded(string, Termination)          {}

type multiObserver []Observer

func (m multiObserver) SessionStarted(id string) {
	for _, o := range m {
		o.SessionStarted(id)
	}
}

func (m multiObserver) MessageSent(id string, seq uint64, elapsed time.Duration) {
	for _, o := range m {
		o.MessageSent(id, seq, elapsed)
	}
}

func (m multiObserver) SessionEnded(id string, t Termination) {
	for _, o := range m {
		o.SessionEnded(id, t)
	}
}

// Observers fans events out to every non-nil observer.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

type options struct {
	id       string
	name     string
	clock    Clock
	encoder  Encoder
	observer Observer
}

// Option configures a Session.
type Option func(*options)

// WithID sets the identifier reported to observers.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithName sets the signal name carried by each message.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithEncoder replaces the JSON envelope encoder.
func WithEncoder(e Encoder) Option {
	return func(o *options) { o.encoder = e }
}

// WithObserver attaches lifecycle hooks. A nil observer is ignored.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// Session pairs one state value with one connection. The connection is
// owned by Run for the whole loop; nothing else may write to it.
type Session[T any] struct {
	id       string
	name     string
	conn     Sender
	interval time.Duration
	mutate   func(*T)
	clock    Clock
	encoder  Encoder
	observer Observer

	mu    sync.RWMutex
	state T
	seq   uint64
}

// New creates a session that, once Run, mutates initial every interval and
// sends the result over conn.
func New[T any](conn Sender, initial T, interval time.Duration, mutate func(*T), opts ...Option) *Session[T] {
	o := options{
		name:     "state",
		clock:    RealClock,
		encoder:  JSONEncoder{},
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if mutate == nil {
		mutate = func(*T) {}
	}
	return &Session[T]{
		id:       o.id,
		name:     o.name,
		conn:     conn,
		interval: interval,
		mutate:   mutate,
		clock:    o.clock,
		encoder:  o.encoder,
		observer: o.observer,
		state:    initial,
	}
}

func (s *Session[T]) ID() string {
	return s.id
}

// State returns a copy of the current state.
func (s *Session[T]) State() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session[T]) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		ID:    s.id,
		Name:  s.name,
		Seq:   s.seq,
		Value: s.state,
	}
}

// Run drives the loop until a send fails or ctx is cancelled. Each tick
// waits one interval, applies the mutation once and sends the new state
// once; ticks never overlap. A failed send is not retried.
func (s *Session[T]) Run(ctx context.Context) Termination {
	s.observer.SessionStarted(s.id)
	t := s.loop(ctx)
	s.observer.SessionEnded(s.id, t)
	return t
}

func (s *Session[T]) loop(ctx context.Context) Termination {
	var t Termination
	for {
		select {
		case <-ctx.Done():
			t.Cause = CauseCancelled
			t.Err = ctx.Err()
			return t
		case <-s.clock.After(s.interval):
		}

		seq, snapshot := s.tick()
		t.Ticks++

		data, err := s.encoder.Encode(s.name, seq, snapshot)
		if err != nil {
			t.Cause = CauseEncodeError
			t.Err = fmt.Errorf("encode %s #%d: %w", s.name, seq, err)
			return t
		}

		start := time.Now()
		if err := s.conn.Send(data); err != nil {
			ce := classify(err)
			t.Cause = ce.Cause
			t.Err = ce
			return t
		}
		t.Sent++
		s.observer.MessageSent(s.id, seq, time.Since(start))
	}
}

func (s *Session[T]) tick() (uint64, T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutate(&s.state)
	s.seq++
	return s.seq, s.state
}
