package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"moviefinder/internal/debounce"
	"moviefinder/internal/domain"
)

var errStoreDown = errors.New("store unavailable")

type fakeCatalog struct {
	mu           sync.Mutex
	results      map[string][]domain.Movie
	discover     []domain.Movie
	details      map[domain.MovieID]domain.MovieDetail
	err          error
	searchCalls  []string
	discoverHits int
}

func (f *fakeCatalog) Search(ctx context.Context, query string) ([]domain.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func (f *fakeCatalog) Discover(ctx context.Context) ([]domain.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discoverHits++
	if f.err != nil {
		return nil, f.err
	}
	return f.discover, nil
}

func (f *fakeCatalog) MovieDetail(ctx context.Context, id domain.MovieID) (domain.MovieDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.MovieDetail{}, f.err
	}
	detail, ok := f.details[id]
	if !ok {
		return domain.MovieDetail{}, domain.ErrNotFound
	}
	return detail, nil
}

// failingCounterStore fails every call and counts them.
type failingCounterStore struct {
	mu    sync.Mutex
	calls int
}

func (s *failingCounterStore) Hit(context.Context, string, domain.MovieSnapshot) (domain.SearchCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return domain.SearchCounter{}, errStoreDown
}

func (s *failingCounterStore) Get(context.Context, string) (domain.SearchCounter, error) {
	return domain.SearchCounter{}, errStoreDown
}

func (s *failingCounterStore) Top(context.Context, int) ([]domain.SearchCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil, errStoreDown
}

type failingFavoriteStore struct{}

func (failingFavoriteStore) Get(context.Context, domain.MovieID) (domain.Favorite, error) {
	return domain.Favorite{}, errStoreDown
}

func (failingFavoriteStore) Toggle(context.Context, domain.MovieSnapshot) (domain.Favorite, error) {
	return domain.Favorite{}, errStoreDown
}

func (failingFavoriteStore) ListFavorites(context.Context) ([]domain.Favorite, error) {
	return nil, errStoreDown
}

// recordingHits captures RecordSearchHit calls.
type recordingHits struct {
	mu    sync.Mutex
	terms []string
	items []domain.Movie
}

func (r *recordingHits) RecordSearchHit(_ context.Context, term string, sample domain.Movie) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terms = append(r.terms, term)
	r.items = append(r.items, sample)
}

// manualClock fires due timers from Advance, in deadline order.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock *manualClock
	at    time.Time
	fn    func()
	done  bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) debounce.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.done
	t.done = true
	return active
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}
