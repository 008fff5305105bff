// Package mops implements the rate-limited HTTP client for the Market
// Observation Post System and shared helpers for its HTML table pages.
package mops

import "errors"

var (
	// ErrTransient indicates a network failure or 5xx; callers may retry.
	ErrTransient = errors.New("mops: transient fetch error")
	// ErrNotFound indicates the upstream returned 404 for the resource.
	ErrNotFound = errors.New("mops: not found")
	// ErrClient indicates a non-404 4xx; the request itself is wrong.
	ErrClient = errors.New("mops: client error")
	// ErrNoData indicates MOPS answered with a 查無資料 page.
	ErrNoData = errors.New("mops: no data for query")
	// ErrInvalidContent indicates the download body is neither ZIP nor iXBRL.
	ErrInvalidContent = errors.New("mops: invalid download content")
	// ErrRowParse indicates too many table rows failed to parse.
	ErrRowParse = errors.New("mops: too many unparseable rows")
	// ErrTooLarge indicates the response exceeded the parse size cap.
	ErrTooLarge = errors.New("mops: response exceeds size limit")
)
