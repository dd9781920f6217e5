package ordsim

import (
	"errors"
)

// ErrNotFound is returned for a subject ID that is absent both locally and
// upstream. It maps to an empty result, not a retryable failure.
var ErrNotFound = errors.New("item not found")
