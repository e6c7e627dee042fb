package redis

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"moviefinder/internal/domain"
)

const DefaultKeyPrefix = "movies:{search}:"

// hitScript increments the term score and writes the snapshot hash only when
// the term is new. Both keys share a hash tag so the script is cluster safe.
var hitScript = redis.NewScript(`
local count = redis.call('ZINCRBY', KEYS[1], 1, ARGV[1])
if redis.call('HSETNX', KEYS[2], 'createdAt', ARGV[2]) == 1 then
  redis.call('HSET', KEYS[2], 'movie_id', ARGV[3], 'title', ARGV[4], 'poster_url', ARGV[5])
end
return count
`)

// CounterStore keeps search counts in a sorted set (member = term, score =
// count) and one snapshot hash per term.
type CounterStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

type CounterOption func(*CounterStore)

func WithKeyPrefix(prefix string) CounterOption {
	return func(s *CounterStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func NewCounterStore(client *redis.Client, opts ...CounterOption) *CounterStore {
	s := &CounterStore{client: client, prefix: DefaultKeyPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CounterStore) countsKey() string { return s.prefix + "counts" }

func (s *CounterStore) metaKey(term string) string { return s.prefix + "term:" + term }

func (s *CounterStore) Hit(ctx context.Context, term string, sample domain.MovieSnapshot) (domain.SearchCounter, error) {
	if term == "" {
		return domain.SearchCounter{}, domain.ErrInvalidTerm
	}
	movieID := ""
	if sample.MovieID > 0 {
		movieID = strconv.FormatInt(int64(sample.MovieID), 10)
	}
	keys := []string{s.countsKey(), s.metaKey(term)}
	score, err := hitScript.Run(ctx, s.client, keys,
		term,
		s.now().UTC().UnixNano(),
		movieID,
		sample.Title,
		sample.PosterURL,
	).Float64()
	if err != nil {
		return domain.SearchCounter{}, err
	}
	meta, err := s.client.HGetAll(ctx, s.metaKey(term)).Result()
	if err != nil {
		return domain.SearchCounter{}, err
	}
	return counterFromMeta(term, int64(score), meta), nil
}

func (s *CounterStore) Get(ctx context.Context, term string) (domain.SearchCounter, error) {
	score, err := s.client.ZScore(ctx, s.countsKey(), term).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.SearchCounter{}, domain.ErrNotFound
		}
		return domain.SearchCounter{}, err
	}
	meta, err := s.client.HGetAll(ctx, s.metaKey(term)).Result()
	if err != nil {
		return domain.SearchCounter{}, err
	}
	return counterFromMeta(term, int64(score), meta), nil
}

// Top orders by count desc and breaks ties by creation time, so members
// sharing the cut-off score are loaded in full before trimming.
func (s *CounterStore) Top(ctx context.Context, limit int) ([]domain.SearchCounter, error) {
	if limit <= 0 {
		return nil, nil
	}
	head, err := s.client.ZRevRangeWithScores(ctx, s.countsKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(head) == 0 {
		return []domain.SearchCounter{}, nil
	}

	entries := head
	if len(head) == limit {
		cut := head[len(head)-1].Score
		entries = entries[:0:0]
		for _, z := range head {
			if z.Score > cut {
				entries = append(entries, z)
			}
		}
		bound := strconv.FormatFloat(cut, 'f', -1, 64)
		ties, err := s.client.ZRangeByScoreWithScores(ctx, s.countsKey(), &redis.ZRangeBy{Min: bound, Max: bound}).Result()
		if err != nil {
			return nil, err
		}
		entries = append(entries, ties...)
	}

	pipe := s.client.Pipeline()
	metas := make([]*redis.MapStringStringCmd, len(entries))
	for i, z := range entries {
		metas[i] = pipe.HGetAll(ctx, s.metaKey(memberString(z.Member)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	counters := make([]domain.SearchCounter, 0, len(entries))
	for i, z := range entries {
		counters = append(counters, counterFromMeta(memberString(z.Member), int64(z.Score), metas[i].Val()))
	}
	sort.SliceStable(counters, func(i, j int) bool {
		if counters[i].Count != counters[j].Count {
			return counters[i].Count > counters[j].Count
		}
		if !counters[i].CreatedAt.Equal(counters[j].CreatedAt) {
			return counters[i].CreatedAt.Before(counters[j].CreatedAt)
		}
		return counters[i].SearchTerm < counters[j].SearchTerm
	})
	if len(counters) > limit {
		counters = counters[:limit]
	}
	return counters, nil
}

func memberString(member any) string {
	switch v := member.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func counterFromMeta(term string, count int64, meta map[string]string) domain.SearchCounter {
	counter := domain.SearchCounter{
		ID:         term,
		SearchTerm: term,
		Count:      count,
		Sample: domain.MovieSnapshot{
			Title:     meta["title"],
			PosterURL: meta["poster_url"],
		},
	}
	if id, err := strconv.ParseInt(meta["movie_id"], 10, 64); err == nil {
		counter.Sample.MovieID = domain.MovieID(id)
	}
	if nanos, err := strconv.ParseInt(meta["createdAt"], 10, 64); err == nil {
		counter.CreatedAt = time.Unix(0, nanos).UTC()
	}
	return counter
}
