package resolve

import "errors"

// ErrTimeout is returned when the caller's context expires before
// resolution finishes. It is the only error Resolve can return; every
// other condition degrades through the fallback tiers instead.
var ErrTimeout = errors.New("resolve timed out")
