package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"moviefinder/internal/domain"
)

// blockingSearcher answers queries listed in block only after the context
// is cancelled or release is closed.
type blockingSearcher struct {
	mu      sync.Mutex
	calls   []string
	block   map[string]bool
	release chan struct{}
	started chan string
}

func newBlockingSearcher(block ...string) *blockingSearcher {
	s := &blockingSearcher{
		block:   make(map[string]bool),
		release: make(chan struct{}),
		started: make(chan string, 16),
	}
	for _, q := range block {
		s.block[q] = true
	}
	return s
}

func (s *blockingSearcher) Execute(ctx context.Context, query string) ([]domain.Movie, error) {
	s.mu.Lock()
	s.calls = append(s.calls, query)
	blocked := s.block[query]
	s.mu.Unlock()
	s.started <- query

	if blocked {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.release:
		}
	}
	return []domain.Movie{{ID: 1, Title: query}}, nil
}

func (s *blockingSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type liveHarness struct {
	clock   *manualClock
	search  *blockingSearcher
	results chan LiveResult
	live    *LiveSearch
}

func newLiveHarness(t *testing.T, search *blockingSearcher) *liveHarness {
	t.Helper()
	h := &liveHarness{
		clock:   newManualClock(),
		search:  search,
		results: make(chan LiveResult, 16),
	}
	h.live = NewLiveSearch(context.Background(), search, func(r LiveResult) {
		h.results <- r
	}, LiveSearchConfig{Quiet: 500 * time.Millisecond, Clock: h.clock})
	t.Cleanup(h.live.Close)
	return h
}

func (h *liveHarness) next(t *testing.T) LiveResult {
	t.Helper()
	select {
	case r := <-h.results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a live result")
		return LiveResult{}
	}
}

func (h *liveHarness) expectNone(t *testing.T) {
	t.Helper()
	select {
	case r := <-h.results:
		t.Fatalf("unexpected result %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLiveSearchDebouncesTyping(t *testing.T) {
	h := newLiveHarness(t, newBlockingSearcher())

	h.live.Update("b")
	h.clock.Advance(100 * time.Millisecond)
	h.live.Update("ba")
	h.clock.Advance(100 * time.Millisecond)
	h.live.Update("bat")
	h.clock.Advance(499 * time.Millisecond)
	h.expectNone(t)

	h.clock.Advance(time.Millisecond)
	r := h.next(t)
	if r.Reset || r.Query != "bat" || len(r.Movies) != 1 || r.Err != nil {
		t.Fatalf("result = %+v", r)
	}
	if h.search.callCount() != 1 {
		t.Fatalf("searches = %d", h.search.callCount())
	}
}

func TestLiveSearchEmptyTextResets(t *testing.T) {
	h := newLiveHarness(t, newBlockingSearcher())

	h.live.Update("dune")
	h.clock.Advance(200 * time.Millisecond)
	h.live.Update("  ")
	h.clock.Advance(500 * time.Millisecond)

	r := h.next(t)
	if !r.Reset || r.Movies != nil {
		t.Fatalf("result = %+v", r)
	}
	if h.search.callCount() != 0 {
		t.Fatalf("searches = %d", h.search.callCount())
	}
}

func TestLiveSearchDropsSupersededResult(t *testing.T) {
	h := newLiveHarness(t, newBlockingSearcher("slow"))

	h.live.Update("slow")
	h.clock.Advance(500 * time.Millisecond)
	if q := <-h.search.started; q != "slow" {
		t.Fatalf("started %q", q)
	}

	h.live.Update("fast")
	h.clock.Advance(500 * time.Millisecond)

	r := h.next(t)
	if r.Query != "fast" {
		t.Fatalf("result = %+v", r)
	}
	h.expectNone(t)
}

func TestLiveSearchCloseCancelsPendingTimer(t *testing.T) {
	search := newBlockingSearcher()
	h := newLiveHarness(t, search)

	h.live.Update("alien")
	h.live.Close()
	h.clock.Advance(time.Second)

	h.expectNone(t)
	if search.callCount() != 0 {
		t.Fatalf("searches = %d", search.callCount())
	}
}

func TestLiveSearchCloseCancelsInflightSearch(t *testing.T) {
	h := newLiveHarness(t, newBlockingSearcher("heat"))

	h.live.Update("heat")
	h.clock.Advance(500 * time.Millisecond)
	<-h.search.started

	done := make(chan struct{})
	go func() {
		h.live.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	h.expectNone(t)
}
