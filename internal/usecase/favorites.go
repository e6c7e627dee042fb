package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"moviefinder/internal/domain"
	"moviefinder/internal/domain/ports"
	"moviefinder/internal/metrics"
	"moviefinder/internal/telemetry"
)

// Favorites reads and flips per-movie favorite state. Reads degrade to safe
// defaults; a failed toggle reports ErrFavoriteUnavailable so the caller keeps
// showing the previous state.
type Favorites struct {
	store   ports.FavoriteStore
	catalog ports.Catalog
	logger  *slog.Logger
	timeout time.Duration
	keys    keyedMutex
}

type FavoritesOption func(*Favorites)

func WithFavoritesLogger(logger *slog.Logger) FavoritesOption {
	return func(f *Favorites) {
		f.logger = logger
	}
}

// WithFavoritesCatalog lets Toggle fill a missing title and poster from the
// catalog when it creates a record.
func WithFavoritesCatalog(catalog ports.Catalog) FavoritesOption {
	return func(f *Favorites) {
		f.catalog = catalog
	}
}

func WithFavoritesTimeout(timeout time.Duration) FavoritesOption {
	return func(f *Favorites) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

func NewFavorites(store ports.FavoriteStore, opts ...FavoritesOption) *Favorites {
	f := &Favorites{
		store:   store,
		logger:  slog.Default(),
		timeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

func (f *Favorites) IsFavorite(ctx context.Context, movieID domain.MovieID) bool {
	if movieID <= 0 || f.store == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	record, err := f.store.Get(ctx, movieID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			f.logger.Warn("read favorite failed",
				slog.Int64("movieId", int64(movieID)),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	return record.IsFavorite
}

// Toggle flips the favorite flag for movie and returns the stored value.
func (f *Favorites) Toggle(ctx context.Context, movie domain.Movie) (bool, error) {
	if movie.ID <= 0 {
		return false, ErrInvalidMovie
	}
	if f.store == nil {
		return false, ErrFavoriteUnavailable
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()
	ctx, span := telemetry.Tracer().Start(ctx, "usecase.ToggleFavorite")
	defer span.End()
	span.SetAttributes(attribute.Int64("movie.id", int64(movie.ID)))

	unlock := f.keys.Lock(strconv.FormatInt(int64(movie.ID), 10))
	defer unlock()

	if strings.TrimSpace(movie.Title) == "" {
		filled, err := f.fillSnapshot(ctx, movie)
		if err != nil {
			return false, err
		}
		movie = filled
	}

	record, err := f.store.Toggle(ctx, domain.SnapshotOf(movie))
	if err != nil {
		metrics.FavoriteTogglesTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "toggle favorite")
		f.logger.Warn("toggle favorite failed",
			slog.Int64("movieId", int64(movie.ID)),
			slog.String("error", err.Error()),
		)
		return false, ErrFavoriteUnavailable
	}

	result := "off"
	if record.IsFavorite {
		result = "on"
	}
	metrics.FavoriteTogglesTotal.WithLabelValues(result).Inc()
	f.logger.Info("favorite toggled",
		slog.Int64("movieId", int64(movie.ID)),
		slog.Bool("isFavorite", record.IsFavorite),
	)
	return record.IsFavorite, nil
}

// fillSnapshot completes a title-less movie before it can create a record.
// Existing records keep their first snapshot, so they need nothing.
func (f *Favorites) fillSnapshot(ctx context.Context, movie domain.Movie) (domain.Movie, error) {
	_, err := f.store.Get(ctx, movie.ID)
	if err == nil {
		return movie, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		metrics.FavoriteTogglesTotal.WithLabelValues("error").Inc()
		f.logger.Warn("favorite lookup failed",
			slog.Int64("movieId", int64(movie.ID)),
			slog.String("error", err.Error()),
		)
		return movie, ErrFavoriteUnavailable
	}

	if f.catalog != nil {
		detail, err := f.catalog.MovieDetail(ctx, movie.ID)
		if err != nil {
			f.logger.Warn("favorite title lookup failed",
				slog.Int64("movieId", int64(movie.ID)),
				slog.String("error", err.Error()),
			)
		} else {
			movie.Title = detail.Title
			if movie.PosterPath == "" {
				movie.PosterPath = detail.PosterPath
			}
		}
	}
	if strings.TrimSpace(movie.Title) == "" {
		return movie, ErrMovieTitleRequired
	}
	return movie, nil
}

// List returns saved movies, newest first. It never returns nil.
func (f *Favorites) List(ctx context.Context) []domain.Favorite {
	if f.store == nil {
		return []domain.Favorite{}
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	items, err := f.store.ListFavorites(ctx)
	if err != nil {
		f.logger.Warn("list favorites failed", slog.String("error", err.Error()))
		return []domain.Favorite{}
	}
	if items == nil {
		return []domain.Favorite{}
	}
	return items
}
