package usecase

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"moviefinder/internal/domain"
	"moviefinder/internal/domain/ports"
	"moviefinder/internal/metrics"
	"moviefinder/internal/telemetry"
)

const defaultStoreTimeout = 5 * time.Second

// SearchRecorder is the counter-store side of search telemetry. It never
// returns store errors: a lost hit must not affect the search itself.
type SearchRecorder struct {
	store   ports.SearchCounterStore
	logger  *slog.Logger
	timeout time.Duration
	keys    keyedMutex
}

type RecorderOption func(*SearchRecorder)

func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *SearchRecorder) {
		r.logger = logger
	}
}

func WithRecorderTimeout(timeout time.Duration) RecorderOption {
	return func(r *SearchRecorder) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

func NewSearchRecorder(store ports.SearchCounterStore, opts ...RecorderOption) *SearchRecorder {
	r := &SearchRecorder{
		store:   store,
		logger:  slog.Default(),
		timeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// RecordSearchHit counts one successful search for term, creating the
// counter with sample as its snapshot on the first hit.
func (r *SearchRecorder) RecordSearchHit(ctx context.Context, term string, sample domain.Movie) {
	term = domain.NormalizeTerm(term)
	if term == "" || r.store == nil {
		return
	}

	// Store writes outlive the request that triggered them.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	ctx, span := telemetry.Tracer().Start(ctx, "usecase.RecordSearchHit")
	defer span.End()
	span.SetAttributes(attribute.String("search.term", term))

	unlock := r.keys.Lock(term)
	defer unlock()

	counter, err := r.store.Hit(ctx, term, domain.SnapshotOf(sample))
	if err != nil {
		metrics.SearchHitFailuresTotal.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "record search hit")
		r.logger.Warn("record search hit failed",
			slog.String("searchTerm", term),
			slog.String("error", err.Error()),
		)
		return
	}
	metrics.SearchHitsTotal.Inc()
	span.SetAttributes(attribute.Int64("search.count", counter.Count))
	r.logger.Debug("search hit recorded",
		slog.String("searchTerm", term),
		slog.Int64("count", counter.Count),
	)
}

// TopSearchTerms returns at most limit counters, highest count first. A
// failed read yields nil so callers can drop the section.
func (r *SearchRecorder) TopSearchTerms(ctx context.Context, limit int) []domain.SearchCounter {
	if limit <= 0 || r.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	counters, err := r.store.Top(ctx, limit)
	if err != nil {
		metrics.TrendingReadFailuresTotal.Inc()
		r.logger.Warn("read top search terms failed",
			slog.Int("limit", limit),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if len(counters) > limit {
		counters = counters[:limit]
	}
	return counters
}
