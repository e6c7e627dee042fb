package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"moviefinder/internal/domain"
	"moviefinder/internal/domain/ports"
)

var _ ports.SearchCounterStore = (*CounterStore)(nil)

// setupTestStore needs REDIS_TEST_URL; every test gets its own key prefix.
func setupTestStore(t *testing.T) *CounterStore {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not reachable at %s: %v", opts.Addr, err)
	}

	prefix := fmt.Sprintf("moviefinder_test:{%d}:", time.Now().UnixNano())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			_ = client.Del(ctx, keys...).Err()
		}
		_ = client.Close()
	})
	return NewCounterStore(client, WithKeyPrefix(prefix))
}

func TestCounterFromMeta(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	got := counterFromMeta("dune", 4, map[string]string{
		"movie_id":   "438631",
		"title":      "Dune",
		"poster_url": "",
		"createdAt":  fmt.Sprint(created.UnixNano()),
	})
	if got.SearchTerm != "dune" || got.Count != 4 || got.Sample.MovieID != 438631 || got.Sample.Title != "Dune" {
		t.Fatalf("counter = %+v", got)
	}
	if got.Sample.PosterURL != "" {
		t.Fatalf("poster = %q", got.Sample.PosterURL)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("createdAt = %v", got.CreatedAt)
	}
}

func TestCounterFromMetaEmpty(t *testing.T) {
	got := counterFromMeta("x", 1, nil)
	if got.Sample.MovieID != 0 || !got.CreatedAt.IsZero() {
		t.Fatalf("counter = %+v", got)
	}
}

func TestMemberString(t *testing.T) {
	if memberString("a") != "a" || memberString([]byte("b")) != "b" || memberString(3) != "" {
		t.Fatal("unexpected member conversion")
	}
}

func TestRedisHitKeepsFirstSnapshot(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.Hit(ctx, "batman", domain.MovieSnapshot{MovieID: 1, Title: "Batman Begins"})
	if err != nil {
		t.Fatalf("Hit: %v", err)
	}
	if first.Count != 1 || first.Sample.Title != "Batman Begins" {
		t.Fatalf("first = %+v", first)
	}
	second, err := store.Hit(ctx, "batman", domain.MovieSnapshot{MovieID: 2, Title: "The Batman"})
	if err != nil {
		t.Fatalf("Hit: %v", err)
	}
	if second.Count != 2 || second.Sample.MovieID != 1 {
		t.Fatalf("second = %+v", second)
	}
}

func TestRedisConcurrentHits(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Hit(ctx, "dune", domain.MovieSnapshot{})
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "dune")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Count != n {
		t.Fatalf("count = %d, want %d", got.Count, n)
	}
}

func TestRedisTopBreaksTiesByCreation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	step := 0
	store.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	// "z" is created before "a"; both end with two hits.
	for _, term := range []string{"z", "a", "z", "a", "m", "m", "m", "q"} {
		if _, err := store.Hit(ctx, term, domain.MovieSnapshot{}); err != nil {
			t.Fatalf("Hit: %v", err)
		}
	}

	top, err := store.Top(ctx, 2)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 2 || top[0].SearchTerm != "m" || top[1].SearchTerm != "z" {
		t.Fatalf("top = %+v", top)
	}
}

func TestRedisGetMissingAndEmptyTerm(t *testing.T) {
	store := setupTestStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := store.Hit(context.Background(), "", domain.MovieSnapshot{}); !errors.Is(err, domain.ErrInvalidTerm) {
		t.Fatalf("err = %v", err)
	}
}
