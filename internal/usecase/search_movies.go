package usecase

import (
	"context"
	"fmt"

	"moviefinder/internal/domain"
	"moviefinder/internal/domain/ports"
)

type HitRecorder interface {
	RecordSearchHit(ctx context.Context, term string, sample domain.Movie)
}

// SearchMovies runs a catalog lookup and counts terms that matched anything.
// A blank query lists popular movies instead and is not counted.
type SearchMovies struct {
	catalog  ports.Catalog
	recorder HitRecorder
}

func NewSearchMovies(catalog ports.Catalog, recorder HitRecorder) *SearchMovies {
	return &SearchMovies{catalog: catalog, recorder: recorder}
}

func (uc *SearchMovies) Execute(ctx context.Context, query string) ([]domain.Movie, error) {
	if uc.catalog == nil {
		return nil, ErrCatalogUnavailable
	}

	term := domain.NormalizeTerm(query)
	if term == "" {
		movies, err := uc.catalog.Discover(ctx)
		if err != nil {
			return nil, fmt.Errorf("discover movies: %w", err)
		}
		return movies, nil
	}

	movies, err := uc.catalog.Search(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}
	if len(movies) > 0 && uc.recorder != nil {
		uc.recorder.RecordSearchHit(ctx, term, movies[0])
	}
	return movies, nil
}
