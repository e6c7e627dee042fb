package usecase

import (
	"context"

	"moviefinder/internal/domain"
)

// TrendingLimit is the size of the trending section.
const TrendingLimit = 5

type TopTermsReader interface {
	TopSearchTerms(ctx context.Context, limit int) []domain.SearchCounter
}

// TrendingRanker is a fixed-size view over the counter store. It keeps no
// state: every call reads the store again.
type TrendingRanker struct {
	source TopTermsReader
}

func NewTrendingRanker(source TopTermsReader) *TrendingRanker {
	return &TrendingRanker{source: source}
}

func (t *TrendingRanker) Trending(ctx context.Context) []domain.SearchCounter {
	if t == nil || t.source == nil {
		return nil
	}
	return t.source.TopSearchTerms(ctx, TrendingLimit)
}
