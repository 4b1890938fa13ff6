package cart

import "errors"

var (
	ErrInvalidCartURL     = errors.New("invalid cart url")
	ErrBrowserUnavailable = errors.New("browser automation engine unavailable")
	ErrLaunchFailure      = errors.New("browser launch failed")
	ErrNavigationFailure  = errors.New("navigation failed")
)
