package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/signal-sync/signal-sync/internal/signal"
)

var (
	ErrMaxConnections = errors.New("session: max connections reached")
	ErrDuplicateID    = errors.New("session: duplicate id")
	ErrClosed         = errors.New("session: store closed")
)

// Info describes one live sync session.
type Info struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	RemoteAddr string    `json:"remoteAddr"`
	StartedAt  time.Time `json:"startedAt"`
	Seq        uint64    `json:"seq"`
	Value      any       `json:"value,omitempty"`
}

// Source reports the current state of a running session.
type Source interface {
	Status() signal.Status
}

type entry struct {
	info   Info
	source Source
	cancel context.CancelFunc
}

// Store tracks the sessions that currently own a connection.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	limit    int
	closed   bool
	wg       sync.WaitGroup
}

// NewStore creates a store admitting at most limit sessions; 0 means no limit.
func NewStore(limit int) *Store {
	return &Store{
		sessions: make(map[string]*entry),
		limit:    limit,
	}
}

// Full reports whether Admit would currently reject a new session.
func (s *Store) Full() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limit > 0 && len(s.sessions) >= s.limit
}

// Admit registers a session. cancel is invoked by CancelAll. Once CancelAll
// has run, Admit refuses every session with ErrClosed.
func (s *Store) Admit(info Info, source Source, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.limit > 0 && len(s.sessions) >= s.limit {
		return ErrMaxConnections
	}
	if _, ok := s.sessions[info.ID]; ok {
		return ErrDuplicateID
	}
	s.sessions[info.ID] = &entry{info: info, source: source, cancel: cancel}
	s.wg.Add(1)
	return nil
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return
	}
	delete(s.sessions, id)
	s.wg.Done()
}

func (s *Store) Get(id string) (Info, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return Info{}, false
	}
	return e.snapshot(), true
}

// GetAll returns copies of every live session, oldest first.
func (s *Store) GetAll() []Info {
	s.mu.RLock()
	result := make([]Info, 0, len(s.sessions))
	for _, e := range s.sessions {
		result = append(result, e.snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CancelAll closes the store to new sessions and asks every live session to
// stop. Sessions remove themselves.
func (s *Store) CancelAll() {
	s.mu.Lock()
	s.closed = true
	cancels := make([]context.CancelFunc, 0, len(s.sessions))
	for _, e := range s.sessions {
		if e.cancel != nil {
			cancels = append(cancels, e.cancel)
		}
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Wait blocks until every admitted session has been removed or ctx is done.
func (s *Store) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) snapshot() Info {
	info := e.info
	if e.source != nil {
		st := e.source.Status()
		info.Seq = st.Seq
		info.Value = st.Value
		if info.Name == "" {
			info.Name = st.Name
		}
	}
	return info
}
