package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"moviefinder/internal/debounce"
	"moviefinder/internal/domain"
	"moviefinder/internal/providers/tmdb"
	"moviefinder/internal/usecase"
)

type HomeLoader interface {
	Load(ctx context.Context) (usecase.HomeView, error)
}

type DetailsLoader interface {
	Load(ctx context.Context, id domain.MovieID) (usecase.DetailsView, error)
}

type TrendingReader interface {
	Trending(ctx context.Context) []domain.SearchCounter
}

type FavoritesService interface {
	IsFavorite(ctx context.Context, movieID domain.MovieID) bool
	Toggle(ctx context.Context, movie domain.Movie) (bool, error)
	List(ctx context.Context) []domain.Favorite
}

type Server struct {
	home      HomeLoader
	search    usecase.MovieSearcher
	details   DetailsLoader
	trending  TrendingReader
	favorites FavoritesService
	logger    *slog.Logger

	debounceQuiet time.Duration
	debounceClock debounce.Clock
	corsOrigins   []string
	rateRPS       float64
	rateBurst     int
}

const maxQueryLength = 500

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithHome(home HomeLoader) ServerOption {
	return func(s *Server) {
		s.home = home
	}
}

func WithSearch(search usecase.MovieSearcher) ServerOption {
	return func(s *Server) {
		s.search = search
	}
}

func WithDetails(details DetailsLoader) ServerOption {
	return func(s *Server) {
		s.details = details
	}
}

func WithTrending(trending TrendingReader) ServerOption {
	return func(s *Server) {
		s.trending = trending
	}
}

func WithFavorites(favorites FavoritesService) ServerOption {
	return func(s *Server) {
		s.favorites = favorites
	}
}

// WithDebounce sets the live-search quiet period and, optionally, its clock.
func WithDebounce(quiet time.Duration, clock debounce.Clock) ServerOption {
	return func(s *Server) {
		s.debounceQuiet = quiet
		s.debounceClock = clock
	}
}

func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithRateLimit sets the global request budget; rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateRPS = rps
		s.rateBurst = burst
	}
}

func NewServer(options ...ServerOption) *Server {
	server := &Server{
		logger:        slog.Default(),
		debounceQuiet: debounce.DefaultQuietPeriod,
		rateRPS:       50,
		rateBurst:     100,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/home", s.handleHome)
	mux.HandleFunc("/movies", s.handleMovies)
	mux.HandleFunc("/movies/", s.handleMovieDetail)
	mux.HandleFunc("/trending", s.handleTrending)
	mux.HandleFunc("/favorites", s.handleFavorites)
	mux.HandleFunc("/favorites/", s.handleFavoriteByID)
	mux.HandleFunc("/search/live", s.handleLiveSearch)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "moviefinder",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger,
		corsMiddleware(newOriginPolicy(s.corsOrigins),
			rateLimitMiddleware(s.rateRPS, s.rateBurst, metricsMiddleware(traced))))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.home == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog_unavailable", "catalog is not configured")
		return
	}
	view, err := s.home.Load(r.Context())
	if err != nil {
		s.writeUsecaseError(w, "load home failed", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleMovies(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/movies" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog_unavailable", "catalog is not configured")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return
	}

	movies, err := s.search.Execute(r.Context(), query)
	if err != nil {
		s.writeUsecaseError(w, "search request failed", err, slog.String("query", truncate(query, 80)))
		return
	}
	if movies == nil {
		movies = []domain.Movie{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query": query,
		"items": movies,
	})
}

func (s *Server) handleMovieDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, ok := parseMovieID(strings.TrimPrefix(r.URL.Path, "/movies/"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid movie id")
		return
	}
	if s.details == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog_unavailable", "catalog is not configured")
		return
	}
	view, err := s.details.Load(r.Context(), id)
	if err != nil {
		s.writeUsecaseError(w, "load movie failed", err, slog.Int64("movieId", int64(id)))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items := []domain.SearchCounter{}
	if s.trending != nil {
		if top := s.trending.Trending(r.Context()); top != nil {
			items = top
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items := []domain.Favorite{}
	if s.favorites != nil {
		items = s.favorites.List(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type toggleFavoriteRequest struct {
	Title      string `json:"title"`
	PosterPath string `json:"posterPath"`
}

// handleFavoriteByID serves GET /favorites/{id} and POST /favorites/{id}/toggle.
func (s *Server) handleFavoriteByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/favorites/")
	toggle := false
	if trimmed, ok := strings.CutSuffix(rest, "/toggle"); ok {
		rest = trimmed
		toggle = true
	}
	id, ok := parseMovieID(rest)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid movie id")
		return
	}

	switch {
	case !toggle && r.Method == http.MethodGet:
		isFavorite := false
		if s.favorites != nil {
			isFavorite = s.favorites.IsFavorite(r.Context(), id)
		}
		writeJSON(w, http.StatusOK, map[string]any{"movieId": id, "isFavorite": isFavorite})
	case toggle && r.Method == http.MethodPost:
		var body toggleFavoriteRequest
		if err := decodeJSONBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if s.favorites == nil {
			writeError(w, http.StatusServiceUnavailable, "favorites_unavailable", "favorites store is not configured")
			return
		}
		movie := domain.Movie{ID: id, Title: strings.TrimSpace(body.Title), PosterPath: strings.TrimSpace(body.PosterPath)}
		isFavorite, err := s.favorites.Toggle(r.Context(), movie)
		if err != nil {
			s.writeUsecaseError(w, "toggle favorite failed", err, slog.Int64("movieId", int64(id)))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"movieId": id, "isFavorite": isFavorite})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) writeUsecaseError(w http.ResponseWriter, msg string, err error, attrs ...any) {
	status, code := classifyError(err)
	if status >= 500 {
		s.logger.Warn(msg, append(attrs, slog.String("error", err.Error()))...)
	}
	writeError(w, status, code, publicMessage(status, code, err))
}

// publicMessage hides upstream and store details behind a fixed text for
// server-side failures; the detail stays in the log.
func publicMessage(status int, code string, err error) string {
	if status < 500 {
		return err.Error()
	}
	switch code {
	case "catalog_unavailable":
		return "catalog is not configured"
	case "favorites_unavailable":
		return "favorites are temporarily unavailable"
	case "catalog_error":
		return "catalog request failed"
	case "timeout":
		return "request timed out"
	default:
		return "internal error"
	}
}

func classifyError(err error) (int, string) {
	var statusErr *tmdb.StatusError
	switch {
	case errors.Is(err, usecase.ErrInvalidMovie), errors.Is(err, usecase.ErrMovieTitleRequired):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound:
		return http.StatusNotFound, "not_found"
	case errors.Is(err, usecase.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable, "catalog_unavailable"
	case errors.Is(err, usecase.ErrFavoriteUnavailable):
		return http.StatusServiceUnavailable, "favorites_unavailable"
	case errors.Is(err, tmdb.ErrCatalog):
		return http.StatusBadGateway, "catalog_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func parseMovieID(raw string) (domain.MovieID, bool) {
	raw = strings.Trim(strings.TrimSpace(raw), "/")
	if raw == "" || strings.Contains(raw, "/") {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return domain.MovieID(id), true
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
