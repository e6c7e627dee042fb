package usecase

import "errors"

var (
	ErrCatalogUnavailable  = errors.New("catalog is not configured")
	ErrFavoriteUnavailable = errors.New("favorite store unavailable")
	ErrInvalidMovie        = errors.New("movie id must be positive")
	ErrMovieTitleRequired  = errors.New("movie title is required to save a new favorite")
)
