package domain

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// SearchCounter counts successful non-empty searches for one term. The
// snapshot fields describe the first matched movie and are written only when
// the record is created.
type SearchCounter struct {
	ID         string        `json:"id"`
	SearchTerm string        `json:"searchTerm"`
	Count      int64         `json:"count"`
	Sample     MovieSnapshot `json:"sample"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// NormalizeTerm trims whitespace at the edges and composes the term to NFC.
// Case is preserved: "Batman" and "batman" are different terms.
func NormalizeTerm(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}
