package domain

import "errors"

var ErrNotFound = errors.New("not found")
var ErrInvalidTerm = errors.New("search term is required")
