package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"moviefinder/internal/domain"
	"moviefinder/internal/domain/ports"
)

type TrendingReader interface {
	Trending(ctx context.Context) []domain.SearchCounter
}

type FavoriteReader interface {
	IsFavorite(ctx context.Context, movieID domain.MovieID) bool
}

// HomeView is the landing screen. Trending is omitted when the counter store
// is unreadable; a catalog failure fails the whole view.
type HomeView struct {
	Trending []domain.SearchCounter `json:"trending,omitempty"`
	Latest   []domain.Movie         `json:"latest"`
}

type Home struct {
	catalog  ports.Catalog
	trending TrendingReader
}

func NewHome(catalog ports.Catalog, trending TrendingReader) *Home {
	return &Home{catalog: catalog, trending: trending}
}

// Load fetches trending and latest movies concurrently, the same pair a
// pull-to-refresh reloads.
func (h *Home) Load(ctx context.Context) (HomeView, error) {
	if h.catalog == nil {
		return HomeView{}, ErrCatalogUnavailable
	}

	var view HomeView
	g, gctx := errgroup.WithContext(ctx)
	if h.trending != nil {
		g.Go(func() error {
			view.Trending = h.trending.Trending(gctx)
			return nil
		})
	}
	g.Go(func() error {
		movies, err := h.catalog.Discover(gctx)
		if err != nil {
			return fmt.Errorf("load latest movies: %w", err)
		}
		view.Latest = movies
		return nil
	})
	if err := g.Wait(); err != nil {
		return HomeView{}, err
	}
	if view.Latest == nil {
		view.Latest = []domain.Movie{}
	}
	return view, nil
}

type DetailsView struct {
	Movie      domain.MovieDetail `json:"movie"`
	IsFavorite bool               `json:"isFavorite"`
}

type Details struct {
	catalog   ports.Catalog
	favorites FavoriteReader
}

func NewDetails(catalog ports.Catalog, favorites FavoriteReader) *Details {
	return &Details{catalog: catalog, favorites: favorites}
}

func (d *Details) Load(ctx context.Context, id domain.MovieID) (DetailsView, error) {
	if id <= 0 {
		return DetailsView{}, ErrInvalidMovie
	}
	if d.catalog == nil {
		return DetailsView{}, ErrCatalogUnavailable
	}

	var view DetailsView
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		detail, err := d.catalog.MovieDetail(gctx, id)
		if err != nil {
			return fmt.Errorf("load movie %d: %w", id, err)
		}
		view.Movie = detail
		return nil
	})
	if d.favorites != nil {
		g.Go(func() error {
			view.IsFavorite = d.favorites.IsFavorite(gctx, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DetailsView{}, err
	}
	return view, nil
}
