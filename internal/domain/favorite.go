package domain

import "time"

// Favorite is the per-movie saved flag. Records are flipped in place and never
// deleted; an unsaved movie has IsFavorite == false.
type Favorite struct {
	ID         string    `json:"id"`
	MovieID    MovieID   `json:"movieId"`
	Title      string    `json:"title"`
	PosterURL  string    `json:"posterUrl,omitempty"`
	IsFavorite bool      `json:"isFavorite"`
	CreatedAt  time.Time `json:"createdAt"`
}

// FlagValue encodes the favorite flag the way it is persisted.
func FlagValue(on bool) int {
	if on {
		return 1
	}
	return 0
}
