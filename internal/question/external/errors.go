package external

import "errors"

// Upstream failure classes. Only ErrInvalidParameter signals a configuration problem;
// the rest are transient from the caller's point of view.
var (
	ErrRateLimited      = errors.New("upstream rate limit exceeded")
	ErrNoResults        = errors.New("upstream has no results for this query")
	ErrInvalidParameter = errors.New("upstream rejected request parameters")
	ErrTokenNotFound    = errors.New("upstream session token not found")
	ErrTokenEmpty       = errors.New("upstream session token exhausted")
	ErrEmptyResults     = errors.New("upstream returned no questions")
)
