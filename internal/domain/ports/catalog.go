package ports

import (
	"context"

	"moviefinder/internal/domain"
)

// Catalog is the remote movie catalog. Errors are returned to the caller.
type Catalog interface {
	Search(ctx context.Context, query string) ([]domain.Movie, error)
	Discover(ctx context.Context) ([]domain.Movie, error)
	MovieDetail(ctx context.Context, id domain.MovieID) (domain.MovieDetail, error)
}
