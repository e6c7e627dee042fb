// Package memory keeps counters and favorites in process memory. Every
// operation runs under the store mutex, so per-key uniqueness holds without
// a read-then-write window.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"moviefinder/internal/domain"
)

func utcNow() time.Time { return time.Now().UTC() }

type counterEntry struct {
	seq    int64
	record domain.SearchCounter
}

type CounterStore struct {
	mu       sync.Mutex
	now      func() time.Time
	seq      int64
	counters map[string]*counterEntry
}

func NewCounterStore() *CounterStore {
	return &CounterStore{
		now:      utcNow,
		counters: make(map[string]*counterEntry),
	}
}

func (s *CounterStore) Hit(ctx context.Context, term string, sample domain.MovieSnapshot) (domain.SearchCounter, error) {
	if err := ctx.Err(); err != nil {
		return domain.SearchCounter{}, err
	}
	if term == "" {
		return domain.SearchCounter{}, domain.ErrInvalidTerm
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.counters[term]; ok {
		entry.record.Count++
		return entry.record, nil
	}
	s.seq++
	entry := &counterEntry{
		seq: s.seq,
		record: domain.SearchCounter{
			ID:         "c" + strconv.FormatInt(s.seq, 10),
			SearchTerm: term,
			Count:      1,
			Sample:     sample,
			CreatedAt:  s.now(),
		},
	}
	s.counters[term] = entry
	return entry.record, nil
}

func (s *CounterStore) Get(ctx context.Context, term string) (domain.SearchCounter, error) {
	if err := ctx.Err(); err != nil {
		return domain.SearchCounter{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.counters[term]
	if !ok {
		return domain.SearchCounter{}, domain.ErrNotFound
	}
	return entry.record, nil
}

// Top orders by count descending, then by creation order.
func (s *CounterStore) Top(ctx context.Context, limit int) ([]domain.SearchCounter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	entries := make([]counterEntry, 0, len(s.counters))
	for _, entry := range s.counters {
		entries = append(entries, *entry)
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].record.Count != entries[j].record.Count {
			return entries[i].record.Count > entries[j].record.Count
		}
		return entries[i].seq < entries[j].seq
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]domain.SearchCounter, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.record)
	}
	return out, nil
}

// Len reports the number of distinct terms.
func (s *CounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

type favoriteEntry struct {
	seq    int64
	record domain.Favorite
}

type FavoriteStore struct {
	mu        sync.Mutex
	now       func() time.Time
	seq       int64
	favorites map[domain.MovieID]*favoriteEntry
}

func NewFavoriteStore() *FavoriteStore {
	return &FavoriteStore{
		now:       utcNow,
		favorites: make(map[domain.MovieID]*favoriteEntry),
	}
}

func (s *FavoriteStore) Get(ctx context.Context, movieID domain.MovieID) (domain.Favorite, error) {
	if err := ctx.Err(); err != nil {
		return domain.Favorite{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.favorites[movieID]
	if !ok {
		return domain.Favorite{}, domain.ErrNotFound
	}
	return entry.record, nil
}

func (s *FavoriteStore) Toggle(ctx context.Context, snapshot domain.MovieSnapshot) (domain.Favorite, error) {
	if err := ctx.Err(); err != nil {
		return domain.Favorite{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.favorites[snapshot.MovieID]; ok {
		entry.record.IsFavorite = !entry.record.IsFavorite
		return entry.record, nil
	}
	s.seq++
	entry := &favoriteEntry{
		seq: s.seq,
		record: domain.Favorite{
			ID:         "f" + strconv.FormatInt(s.seq, 10),
			MovieID:    snapshot.MovieID,
			Title:      snapshot.Title,
			PosterURL:  snapshot.PosterURL,
			IsFavorite: true,
			CreatedAt:  s.now(),
		},
	}
	s.favorites[snapshot.MovieID] = entry
	return entry.record, nil
}

// ListFavorites returns records with the flag on, newest created first.
func (s *FavoriteStore) ListFavorites(ctx context.Context) ([]domain.Favorite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	entries := make([]favoriteEntry, 0, len(s.favorites))
	for _, entry := range s.favorites {
		if entry.record.IsFavorite {
			entries = append(entries, *entry)
		}
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].record.CreatedAt.Equal(entries[j].record.CreatedAt) {
			return entries[i].record.CreatedAt.After(entries[j].record.CreatedAt)
		}
		return entries[i].seq > entries[j].seq
	})
	out := make([]domain.Favorite, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.record)
	}
	return out, nil
}

// Len reports the number of favorite records, on or off.
func (s *FavoriteStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.favorites)
}
