package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	bbolt "go.etcd.io/bbolt"

	"moviefinder/internal/domain"
)

type favoriteDoc struct {
	ID         string  `json:"id"`
	Seq        uint64  `json:"seq"`
	MovieID    int64   `json:"movie_id"`
	Title      string  `json:"title"`
	PosterURL  *string `json:"poster_url"`
	IsFavorite *int    `json:"is_favorite,omitempty"`
	CreatedAt  int64   `json:"createdAt"`
}

type FavoriteStore struct {
	db  *DB
	now func() time.Time
}

func NewFavoriteStore(db *DB) *FavoriteStore {
	return &FavoriteStore{db: db, now: time.Now}
}

func movieKey(id domain.MovieID) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func (s *FavoriteStore) Get(ctx context.Context, movieID domain.MovieID) (domain.Favorite, error) {
	if err := ctx.Err(); err != nil {
		return domain.Favorite{}, err
	}
	var doc favoriteDoc
	err := s.db.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(favoritesBucket).Get(movieKey(movieID))
		if data == nil {
			return domain.ErrNotFound
		}
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return domain.Favorite{}, err
	}
	return doc.toDomain(), nil
}

func (s *FavoriteStore) Toggle(ctx context.Context, snapshot domain.MovieSnapshot) (domain.Favorite, error) {
	if err := ctx.Err(); err != nil {
		return domain.Favorite{}, err
	}
	var doc favoriteDoc
	err := s.db.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(favoritesBucket)
		key := movieKey(snapshot.MovieID)
		if data := b.Get(key); data != nil {
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("decode favorite %d: %w", snapshot.MovieID, err)
			}
			flag := 1 - flagOf(doc.IsFavorite)
			doc.IsFavorite = &flag
		} else {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			on := 1
			doc = favoriteDoc{
				ID:         "f" + strconv.FormatUint(seq, 10),
				Seq:        seq,
				MovieID:    int64(snapshot.MovieID),
				Title:      snapshot.Title,
				IsFavorite: &on,
				CreatedAt:  s.now().UTC().UnixMilli(),
			}
			if snapshot.PosterURL != "" {
				poster := snapshot.PosterURL
				doc.PosterURL = &poster
			}
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
	if err != nil {
		return domain.Favorite{}, err
	}
	return doc.toDomain(), nil
}

func (s *FavoriteStore) ListFavorites(ctx context.Context) ([]domain.Favorite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var docs []favoriteDoc
	err := s.db.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(favoritesBucket).ForEach(func(_ []byte, v []byte) error {
			var doc favoriteDoc
			if err := json.Unmarshal(v, &doc); err != nil {
				return nil
			}
			if flagOf(doc.IsFavorite) == 1 {
				docs = append(docs, doc)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt != docs[j].CreatedAt {
			return docs[i].CreatedAt > docs[j].CreatedAt
		}
		return docs[i].Seq > docs[j].Seq
	})
	out := make([]domain.Favorite, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

// flagOf treats a missing flag as off.
func flagOf(flag *int) int {
	if flag == nil || *flag != 1 {
		return 0
	}
	return 1
}

func (d favoriteDoc) toDomain() domain.Favorite {
	fav := domain.Favorite{
		ID:         d.ID,
		MovieID:    domain.MovieID(d.MovieID),
		Title:      d.Title,
		IsFavorite: flagOf(d.IsFavorite) == 1,
		CreatedAt:  time.UnixMilli(d.CreatedAt).UTC(),
	}
	if d.PosterURL != nil {
		fav.PosterURL = *d.PosterURL
	}
	return fav
}
