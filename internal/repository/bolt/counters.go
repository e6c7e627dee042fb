package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	bbolt "go.etcd.io/bbolt"

	"moviefinder/internal/domain"
)

type counterDoc struct {
	ID         string  `json:"id"`
	Seq        uint64  `json:"seq"`
	SearchTerm string  `json:"searchTerm"`
	Count      int64   `json:"count"`
	MovieID    *int64  `json:"movie_id"`
	Title      *string `json:"title"`
	PosterURL  *string `json:"poster_url"`
	CreatedAt  int64   `json:"createdAt"`
}

type CounterStore struct {
	db  *DB
	now func() time.Time
}

func NewCounterStore(db *DB) *CounterStore {
	return &CounterStore{db: db, now: time.Now}
}

func (s *CounterStore) Hit(ctx context.Context, term string, sample domain.MovieSnapshot) (domain.SearchCounter, error) {
	if err := ctx.Err(); err != nil {
		return domain.SearchCounter{}, err
	}
	if term == "" {
		return domain.SearchCounter{}, domain.ErrInvalidTerm
	}
	var doc counterDoc
	err := s.db.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(countersBucket)
		key := []byte(term)
		if data := b.Get(key); data != nil {
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("decode counter %q: %w", term, err)
			}
			doc.Count++
		} else {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			doc = newCounterDoc(seq, term, sample, s.now())
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
	if err != nil {
		return domain.SearchCounter{}, err
	}
	return doc.toDomain(), nil
}

func (s *CounterStore) Get(ctx context.Context, term string) (domain.SearchCounter, error) {
	if err := ctx.Err(); err != nil {
		return domain.SearchCounter{}, err
	}
	var doc counterDoc
	err := s.db.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(countersBucket).Get([]byte(term))
		if data == nil {
			return domain.ErrNotFound
		}
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return domain.SearchCounter{}, err
	}
	return doc.toDomain(), nil
}

func (s *CounterStore) Top(ctx context.Context, limit int) ([]domain.SearchCounter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var docs []counterDoc
	err := s.db.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(countersBucket).ForEach(func(_ []byte, v []byte) error {
			var doc counterDoc
			if err := json.Unmarshal(v, &doc); err != nil {
				// Malformed records are skipped rather than failing the ranking.
				return nil
			}
			docs = append(docs, doc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Count != docs[j].Count {
			return docs[i].Count > docs[j].Count
		}
		return docs[i].Seq < docs[j].Seq
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	out := make([]domain.SearchCounter, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

func newCounterDoc(seq uint64, term string, sample domain.MovieSnapshot, now time.Time) counterDoc {
	doc := counterDoc{
		ID:         "c" + strconv.FormatUint(seq, 10),
		Seq:        seq,
		SearchTerm: term,
		Count:      1,
		CreatedAt:  now.UTC().UnixMilli(),
	}
	if sample.MovieID > 0 {
		id := int64(sample.MovieID)
		doc.MovieID = &id
	}
	if sample.Title != "" {
		title := sample.Title
		doc.Title = &title
	}
	if sample.PosterURL != "" {
		poster := sample.PosterURL
		doc.PosterURL = &poster
	}
	return doc
}

func (d counterDoc) toDomain() domain.SearchCounter {
	counter := domain.SearchCounter{
		ID:         d.ID,
		SearchTerm: d.SearchTerm,
		Count:      d.Count,
		CreatedAt:  time.UnixMilli(d.CreatedAt).UTC(),
	}
	if d.MovieID != nil {
		counter.Sample.MovieID = domain.MovieID(*d.MovieID)
	}
	if d.Title != nil {
		counter.Sample.Title = *d.Title
	}
	if d.PosterURL != nil {
		counter.Sample.PosterURL = *d.PosterURL
	}
	return counter
}
