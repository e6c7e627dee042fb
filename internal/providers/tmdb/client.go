package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"moviefinder/internal/domain"
	"moviefinder/internal/metrics"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	defaultLanguage = "en-US"
	redisCacheKey   = "movies:tmdb:"
	maxBodyBytes    = 1 << 20
)

// ErrCatalog wraps every failure of the remote catalog.
var ErrCatalog = errors.New("catalog request failed")

// StatusError is a non-200 answer from the catalog.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("tmdb HTTP %d", e.Code)
	}
	return fmt.Sprintf("tmdb HTTP %d: %s", e.Code, e.Body)
}

type Config struct {
	// APIKey is either a v3 key (sent as api_key) or a v4 read access
	// token (sent as a bearer token).
	APIKey   string
	BaseURL  string
	Language string
	Client   *http.Client
	Timeout  time.Duration
	Redis    *redis.Client
	CacheTTL time.Duration
	// CacheMaxEntries bounds the in-process cache used without Redis.
	CacheMaxEntries int
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64
	Retry     RetryConfig
	Logger    *slog.Logger
}

type Client struct {
	apiKey   string
	bearer   bool
	baseURL  string
	language string
	http     *http.Client
	redis    *redis.Client
	cacheTTL time.Duration
	memory   *memoryCache
	limiter  *rate.Limiter
	retry    RetryConfig
	logger   *slog.Logger
}

type movieJSON struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
}

type listResponse struct {
	Page    int         `json:"page"`
	Results []movieJSON `json:"results"`
}

type namedJSON struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type detailJSON struct {
	movieJSON
	Runtime             int         `json:"runtime"`
	VoteCount           int         `json:"vote_count"`
	Genres              []namedJSON `json:"genres"`
	Budget              int64       `json:"budget"`
	Revenue             int64       `json:"revenue"`
	ProductionCompanies []namedJSON `json:"production_companies"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = defaultLanguage
	}
	httpClient := cfg.Client
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	c := &Client{
		apiKey:   apiKey,
		bearer:   strings.Count(apiKey, ".") == 2,
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		http:     httpClient,
		redis:    cfg.Redis,
		cacheTTL: cacheTTL,
		retry:    retry,
		logger:   logger,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if c.redis == nil {
		c.memory = newMemoryCache(cacheTTL, cfg.CacheMaxEntries)
	}
	return c
}

func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

func (c *Client) Search(ctx context.Context, query string) ([]domain.Movie, error) {
	query = strings.TrimSpace(query)
	params := url.Values{
		"query":         {query},
		"include_adult": {"false"},
	}
	cacheKey := "search:" + c.language + ":" + strings.ToLower(query)
	var resp listResponse
	if err := c.getJSON(ctx, "search", "/search/movie", params, cacheKey, &resp); err != nil {
		return nil, err
	}
	return moviesFromJSON(resp.Results), nil
}

// Discover lists popular movies, the default feed for an empty query.
func (c *Client) Discover(ctx context.Context) ([]domain.Movie, error) {
	params := url.Values{"sort_by": {"popularity.desc"}}
	var resp listResponse
	if err := c.getJSON(ctx, "discover", "/discover/movie", params, "discover:"+c.language, &resp); err != nil {
		return nil, err
	}
	return moviesFromJSON(resp.Results), nil
}

func (c *Client) MovieDetail(ctx context.Context, id domain.MovieID) (domain.MovieDetail, error) {
	if id <= 0 {
		return domain.MovieDetail{}, fmt.Errorf("%w: invalid movie id %d", ErrCatalog, id)
	}
	idStr := strconv.FormatInt(int64(id), 10)
	var resp detailJSON
	if err := c.getJSON(ctx, "detail", "/movie/"+idStr, url.Values{}, "movie:"+c.language+":"+idStr, &resp); err != nil {
		return domain.MovieDetail{}, err
	}
	return detailFromJSON(resp), nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, params url.Values, cacheKey string, out any) error {
	if !c.Enabled() {
		return fmt.Errorf("%w: no api key configured", ErrCatalog)
	}
	if c.readCache(ctx, cacheKey, out) {
		metrics.CatalogCacheHitsTotal.Inc()
		return nil
	}

	params.Set("language", c.language)
	if !c.bearer {
		params.Set("api_key", c.apiKey)
	}
	reqURL := c.baseURL + path + "?" + params.Encode()

	start := time.Now()
	var body []byte
	err := RetryWithBackoff(ctx, c.retry, func() error {
		var err error
		body, err = c.do(ctx, reqURL)
		return err
	})
	metrics.CatalogRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues(op, "error").Inc()
		c.logger.Warn("tmdb request failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %s: %w", ErrCatalog, op, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("%w: decode %s: %w", ErrCatalog, op, err)
	}
	metrics.CatalogRequestsTotal.WithLabelValues(op, "ok").Inc()
	c.writeCache(ctx, cacheKey, body)
	return nil
}

func (c *Client) do(ctx context.Context, reqURL string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.bearer {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil {
		if c.memory == nil {
			return false
		}
		data, ok := c.memory.get(key, time.Now())
		return ok && json.Unmarshal(data, out) == nil
	}
	data, err := c.redis.Get(ctx, redisCacheKey+key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, body []byte) {
	if c.redis == nil {
		if c.memory != nil {
			c.memory.set(key, body, time.Now())
		}
		return
	}
	if err := c.redis.Set(ctx, redisCacheKey+key, body, c.cacheTTL).Err(); err != nil {
		c.logger.Debug("tmdb cache write failed", slog.String("error", err.Error()))
	}
}

func moviesFromJSON(items []movieJSON) []domain.Movie {
	movies := make([]domain.Movie, 0, len(items))
	for _, item := range items {
		movies = append(movies, movieFromJSON(item))
	}
	return movies
}

func movieFromJSON(item movieJSON) domain.Movie {
	return domain.Movie{
		ID:          domain.MovieID(item.ID),
		Title:       item.Title,
		Overview:    item.Overview,
		PosterPath:  item.PosterPath,
		ReleaseDate: item.ReleaseDate,
		VoteAverage: item.VoteAverage,
	}
}

func detailFromJSON(item detailJSON) domain.MovieDetail {
	detail := domain.MovieDetail{
		Movie:     movieFromJSON(item.movieJSON),
		Runtime:   item.Runtime,
		VoteCount: item.VoteCount,
		Budget:    item.Budget,
		Revenue:   item.Revenue,
	}
	for _, g := range item.Genres {
		detail.Genres = append(detail.Genres, domain.Genre{ID: g.ID, Name: g.Name})
	}
	for _, pc := range item.ProductionCompanies {
		detail.ProductionCompanies = append(detail.ProductionCompanies, domain.Company{ID: pc.ID, Name: pc.Name})
	}
	return detail
}
