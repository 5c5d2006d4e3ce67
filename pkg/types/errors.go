package types

import "errors"

var (
	// ErrDataUnavailable means the source is missing or unreadable.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrSchema means a required column is missing from the source.
	ErrSchema = errors.New("schema error")
	// ErrTimezoneMismatch means a naive value met an aware one.
	ErrTimezoneMismatch = errors.New("timezone mismatch")
	// ErrInvalidRange means the end of a range precedes its start.
	ErrInvalidRange = errors.New("invalid range")
	// ErrInvalidArgument means a parameter is outside its domain.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEmptyStore means no records are loaded. A day without records is
	// not an error.
	ErrEmptyStore = errors.New("empty store")
)
