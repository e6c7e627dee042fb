package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"moviefinder/internal/domain/ports"
)

var _ ports.Catalog = (*Client)(nil)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func newTestClient(t *testing.T, apiKey string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:  apiKey,
		BaseURL: srv.URL + "/3",
		Client:  srv.Client(),
		Retry:   fastRetry(),
	})
}

func TestSearchUsesQueryAndAPIKey(t *testing.T) {
	client := newTestClient(t, "v3key", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/search/movie" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("query") != "batman" || q.Get("api_key") != "v3key" || q.Get("language") != "en-US" {
			t.Errorf("query = %v", q)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header")
		}
		fmt.Fprint(w, `{"page":1,"results":[{"id":268,"title":"Batman","poster_path":"/b.jpg","release_date":"1989-06-23","vote_average":7.2}]}`)
	})

	movies, err := client.Search(context.Background(), "  batman ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(movies) != 1 {
		t.Fatalf("movies = %+v", movies)
	}
	m := movies[0]
	if m.ID != 268 || m.Title != "Batman" || m.Year() != 1989 || m.PosterURL() != "https://image.tmdb.org/t/p/w500/b.jpg" {
		t.Fatalf("movie = %+v", m)
	}
}

func TestBearerTokenSentAsHeader(t *testing.T) {
	token := "eyJhbGciOiJIUzI1NiJ9.eyJhdWQiOiJ4In0.sig"
	client := newTestClient(t, token, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer "+token {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Query().Has("api_key") {
			t.Errorf("api_key must not be sent with a bearer token")
		}
		fmt.Fprint(w, `{"results":[]}`)
	})
	movies, err := client.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if movies == nil || len(movies) != 0 {
		t.Fatalf("movies = %#v", movies)
	}
}

func TestDiscoverSortsByPopularity(t *testing.T) {
	client := newTestClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/discover/movie" || r.URL.Query().Get("sort_by") != "popularity.desc" {
			t.Errorf("request = %s", r.URL.String())
		}
		fmt.Fprint(w, `{"results":[{"id":1,"title":"A"},{"id":2,"title":"B"}]}`)
	})
	movies, err := client.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(movies) != 2 || movies[1].Title != "B" {
		t.Fatalf("movies = %+v", movies)
	}
}

func TestMovieDetailMapping(t *testing.T) {
	client := newTestClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/movie/438631" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"id":438631,"title":"Dune","runtime":155,"vote_count":100,"vote_average":7.8,
			"budget":165000000,"revenue":402000000,"release_date":"2021-09-15",
			"genres":[{"id":878,"name":"Science Fiction"}],
			"production_companies":[{"id":923,"name":"Legendary Pictures"}]}`)
	})
	detail, err := client.MovieDetail(context.Background(), 438631)
	if err != nil {
		t.Fatalf("MovieDetail: %v", err)
	}
	if detail.ID != 438631 || detail.Runtime != 155 || detail.Budget != 165000000 || detail.VoteCount != 100 {
		t.Fatalf("detail = %+v", detail)
	}
	if len(detail.Genres) != 1 || detail.Genres[0].Name != "Science Fiction" {
		t.Fatalf("genres = %+v", detail.Genres)
	}
	if len(detail.ProductionCompanies) != 1 || detail.ProductionCompanies[0].Name != "Legendary Pictures" {
		t.Fatalf("companies = %+v", detail.ProductionCompanies)
	}
}

func TestMovieDetailInvalidID(t *testing.T) {
	client := NewClient(Config{APIKey: "k"})
	if _, err := client.MovieDetail(context.Background(), 0); !errors.Is(err, ErrCatalog) {
		t.Fatalf("err = %v", err)
	}
}

func TestNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"status_message":"not found"}`, http.StatusNotFound)
	})
	_, err := client.MovieDetail(context.Background(), 7)
	if !errors.Is(err, ErrCatalog) {
		t.Fatalf("err = %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("status err = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestServerErrorRetriedThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"results":[{"id":5,"title":"E"}]}`)
	})
	movies, err := client.Search(context.Background(), "e")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(movies) != 1 || calls.Load() != 3 {
		t.Fatalf("movies = %+v calls = %d", movies, calls.Load())
	}
}

func TestMalformedBody(t *testing.T) {
	client := newTestClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":`)
	})
	if _, err := client.Discover(context.Background()); !errors.Is(err, ErrCatalog) {
		t.Fatalf("err = %v", err)
	}
}

func TestDisabledWithoutKey(t *testing.T) {
	client := NewClient(Config{})
	if client.Enabled() {
		t.Fatal("client without key must be disabled")
	}
	if _, err := client.Search(context.Background(), "x"); !errors.Is(err, ErrCatalog) {
		t.Fatalf("err = %v", err)
	}
}
