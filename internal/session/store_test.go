package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/signal-sync/signal-sync/internal/signal"
)

type staticSource signal.Status

func (s staticSource) Status() signal.Status { return signal.Status(s) }

func TestNewStore(t *testing.T) {
	s := NewStore(0)
	if s == nil {
		t.Fatal("NewStore() returned nil")
	}
	if got := len(s.GetAll()); got != 0 {
		t.Errorf("new store has %d sessions, want 0", got)
	}
	if s.Full() {
		t.Error("unlimited store reports full")
	}
}

func TestGetMissing(t *testing.T) {
	s := NewStore(0)
	if _, ok := s.Get("nonexistent"); ok {
		t.Error("Get for missing key returned ok=true")
	}
}

func TestAdmitAndGet(t *testing.T) {
	s := NewStore(0)
	src := staticSource{ID: "a", Name: "count", Seq: 4, Value: signal.Count{Value: 4}}
	if err := s.Admit(Info{ID: "a", RemoteAddr: "127.0.0.1:5000"}, src, nil); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	info, ok := s.Get("a")
	if !ok {
		t.Fatal("Get returned ok=false after Admit")
	}
	if info.Name != "count" || info.Seq != 4 || info.RemoteAddr != "127.0.0.1:5000" {
		t.Errorf("Get returned unexpected info: %+v", info)
	}
	if c, ok := info.Value.(signal.Count); !ok || c.Value != 4 {
		t.Errorf("Value = %#v", info.Value)
	}
}

func TestAdmitDuplicate(t *testing.T) {
	s := NewStore(0)
	if err := s.Admit(Info{ID: "a"}, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Admit(Info{ID: "a"}, nil, nil); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("second Admit err = %v, want ErrDuplicateID", err)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestAdmitLimit(t *testing.T) {
	s := NewStore(2)
	for i := 0; i < 2; i++ {
		if err := s.Admit(Info{ID: fmt.Sprintf("s%d", i)}, nil, nil); err != nil {
			t.Fatalf("Admit %d: %v", i, err)
		}
	}
	if !s.Full() {
		t.Error("store at limit should report full")
	}
	if err := s.Admit(Info{ID: "s2"}, nil, nil); !errors.Is(err, ErrMaxConnections) {
		t.Errorf("Admit over limit err = %v, want ErrMaxConnections", err)
	}

	s.Remove("s0")
	if err := s.Admit(Info{ID: "s2"}, nil, nil); err != nil {
		t.Errorf("Admit after Remove: %v", err)
	}
}

func TestRemoveMissingIsNoop(t *testing.T) {
	s := NewStore(0)
	s.Remove("ghost")
	if err := s.Wait(context.Background()); err != nil {
		t.Errorf("Wait on empty store: %v", err)
	}
}

func TestGetAllOrderedByStart(t *testing.T) {
	s := NewStore(0)
	base := time.Now()
	s.Admit(Info{ID: "late", StartedAt: base.Add(2 * time.Second)}, nil, nil)
	s.Admit(Info{ID: "early", StartedAt: base}, nil, nil)
	s.Admit(Info{ID: "mid", StartedAt: base.Add(time.Second)}, nil, nil)

	all := s.GetAll()
	want := []string{"early", "mid", "late"}
	for i, id := range want {
		if all[i].ID != id {
			t.Errorf("GetAll()[%d] = %s, want %s", i, all[i].ID, id)
		}
	}
}

func TestCancelAllAndWait(t *testing.T) {
	s := NewStore(0)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("s%d", i)
		ctx, cancel := context.WithCancel(context.Background())
		if err := s.Admit(Info{ID: id}, nil, cancel); err != nil {
			t.Fatal(err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			s.Remove(id)
		}()
	}

	s.CancelAll()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	wg.Wait()
	if s.Count() != 0 {
		t.Errorf("Count() = %d after shutdown, want 0", s.Count())
	}
}

func TestAdmitAfterCancelAll(t *testing.T) {
	s := NewStore(0)
	s.CancelAll()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Admit(Info{ID: "late"}, nil, cancel); !errors.Is(err, ErrClosed) {
		t.Fatalf("Admit after CancelAll err = %v, want ErrClosed", err)
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	if err := s.Wait(waitCtx); err != nil {
		t.Errorf("Wait: %v, refused session must not be waited on", err)
	}
	if ctx.Err() != nil {
		t.Error("refused session's context was cancelled by the store")
	}
}

func TestWaitTimesOut(t *testing.T) {
	s := NewStore(0)
	s.Admit(Info{ID: "stuck"}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait err = %v, want DeadlineExceeded", err)
	}
}

func TestConcurrentAdmitRemove(t *testing.T) {
	s := NewStore(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			s.Admit(Info{ID: id}, nil, nil)
			s.GetAll()
			s.Remove(id)
		}(i)
	}
	wg.Wait()
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
}
