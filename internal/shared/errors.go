package shared

import "errors"

var (
	// ErrNotFound indicates the upstream has no data for the query.
	ErrNotFound = errors.New("not found")
	// ErrUpstreamData indicates MOPS returned data we could not interpret.
	ErrUpstreamData = errors.New("upstream data invalid")
	// ErrUpstreamUnavailable indicates MOPS could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
