package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"moviefinder/internal/debounce"
	"moviefinder/internal/domain"
	"moviefinder/internal/metrics"
)

type MovieSearcher interface {
	Execute(ctx context.Context, query string) ([]domain.Movie, error)
}

// LiveResult is delivered once per debounced event.
type LiveResult struct {
	Seq    uint64
	Query  string
	Reset  bool
	Movies []domain.Movie
	Err    error
}

// LiveSearch binds a debounce controller to the search flow for one typing
// session. A newer event cancels the search still running for an older one,
// and nothing is delivered after Close returns.
type LiveSearch struct {
	search  MovieSearcher
	deliver func(LiveResult)
	logger  *slog.Logger
	ctrl    *debounce.Controller

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	inflight context.CancelFunc
	wg       sync.WaitGroup
}

type LiveSearchConfig struct {
	Quiet  time.Duration
	Logger *slog.Logger
	Clock  debounce.Clock
}

// NewLiveSearch starts an idle session. deliver is called with the session
// lock held and must not block or call back into the session.
func NewLiveSearch(ctx context.Context, search MovieSearcher, deliver func(LiveResult), cfg LiveSearchConfig) *LiveSearch {
	sessionCtx, cancel := context.WithCancel(ctx)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	l := &LiveSearch{
		search:  search,
		deliver: deliver,
		logger:  logger,
		ctx:     sessionCtx,
		cancel:  cancel,
	}
	var opts []debounce.Option
	if cfg.Clock != nil {
		opts = append(opts, debounce.WithClock(cfg.Clock))
	}
	l.ctrl = debounce.New(cfg.Quiet, l.handle, opts...)
	return l
}

// Update feeds the latest text typed by the user.
func (l *LiveSearch) Update(text string) {
	l.ctrl.Update(text)
}

func (l *LiveSearch) handle(event debounce.Event) {
	metrics.DebounceEventsTotal.WithLabelValues(string(event.Kind)).Inc()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if l.inflight != nil {
		l.inflight()
		l.inflight = nil
	}

	if event.Kind == debounce.EventReset {
		l.deliver(LiveResult{Seq: event.Seq, Reset: true})
		return
	}

	ctx, cancel := context.WithCancel(l.ctx)
	l.inflight = cancel
	l.wg.Add(1)
	go l.run(ctx, cancel, event)
}

func (l *LiveSearch) run(ctx context.Context, cancel context.CancelFunc, event debounce.Event) {
	defer l.wg.Done()
	defer cancel()

	movies, err := l.search.Execute(ctx, event.Text)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || ctx.Err() != nil {
		l.logger.Debug("live search result dropped",
			slog.Uint64("seq", event.Seq),
			slog.Bool("closed", l.closed),
		)
		return
	}
	l.inflight = nil
	if movies == nil {
		movies = []domain.Movie{}
	}
	l.deliver(LiveResult{
		Seq:    event.Seq,
		Query:  event.Text,
		Movies: movies,
		Err:    err,
	})
}

// Close tears the session down: the pending timer is cancelled, a running
// search is cancelled and its result dropped.
func (l *LiveSearch) Close() {
	l.ctrl.Close()

	l.mu.Lock()
	l.closed = true
	if l.inflight != nil {
		l.inflight()
		l.inflight = nil
	}
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
}
