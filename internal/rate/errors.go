package rate

import "errors"

// ErrRateLimited indicates the caller exhausted its attempt budget for the window.
var ErrRateLimited = errors.New("rate limited")
