package domain

import "strings"

const posterBaseURL = "https://image.tmdb.org/t/p/w500"

type MovieID int64

// Movie is a catalog list item as returned by search and discover.
type Movie struct {
	ID          MovieID `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview,omitempty"`
	PosterPath  string  `json:"posterPath,omitempty"`
	ReleaseDate string  `json:"releaseDate,omitempty"`
	VoteAverage float64 `json:"voteAverage,omitempty"`
}

func (m Movie) PosterURL() string {
	return PosterURL(m.PosterPath)
}

// Year returns the leading year of ReleaseDate, or 0.
func (m Movie) Year() int {
	if len(m.ReleaseDate) < 4 {
		return 0
	}
	year := 0
	for _, c := range m.ReleaseDate[:4] {
		if c < '0' || c > '9' {
			return 0
		}
		year = year*10 + int(c-'0')
	}
	return year
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Company struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type MovieDetail struct {
	Movie
	Runtime             int       `json:"runtime,omitempty"`
	VoteCount           int       `json:"voteCount,omitempty"`
	Genres              []Genre   `json:"genres,omitempty"`
	Budget              int64     `json:"budget,omitempty"`
	Revenue             int64     `json:"revenue,omitempty"`
	ProductionCompanies []Company `json:"productionCompanies,omitempty"`
}

// MovieSnapshot holds the display fields copied into counter and favorite
// records. It is taken once and never refreshed.
type MovieSnapshot struct {
	MovieID   MovieID `json:"movieId,omitempty"`
	Title     string  `json:"title,omitempty"`
	PosterURL string  `json:"posterUrl,omitempty"`
}

func SnapshotOf(m Movie) MovieSnapshot {
	return MovieSnapshot{
		MovieID:   m.ID,
		Title:     m.Title,
		PosterURL: m.PosterURL(),
	}
}

func PosterURL(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return posterBaseURL + path
}
