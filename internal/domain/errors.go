package domain

import "errors"

// ErrInvalidOffset rejects non-positive lookback offsets at the query
// boundary. It is never silently corrected.
var ErrInvalidOffset = errors.New("offset must be greater than zero")
