package ports

import (
	"context"

	"moviefinder/internal/domain"
)

// SearchCounterStore keeps one counter per normalized search term.
// Hit must be atomic per term: concurrent hits for a new term create a single
// record and no increment is lost.
type SearchCounterStore interface {
	Hit(ctx context.Context, term string, sample domain.MovieSnapshot) (domain.SearchCounter, error)
	Get(ctx context.Context, term string) (domain.SearchCounter, error)
	Top(ctx context.Context, limit int) ([]domain.SearchCounter, error)
}

// FavoriteStore keeps one favorite record per movie id.
type FavoriteStore interface {
	Get(ctx context.Context, movieID domain.MovieID) (domain.Favorite, error)
	// Toggle flips the flag of an existing record (a missing flag counts as
	// off) or creates the record switched on with the given snapshot.
	Toggle(ctx context.Context, snapshot domain.MovieSnapshot) (domain.Favorite, error)
	ListFavorites(ctx context.Context) ([]domain.Favorite, error)
}
