// Package sentinel holds the infrastructure facts stores report. Services
// translate them into domain errors; handlers never see them directly.
package sentinel

import "errors"

var (
	// ErrNotFound: the row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a unique key is already taken.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState: the row exists but a conditional update matched nothing,
	// usually because a concurrent transition got there first.
	ErrInvalidState = errors.New("invalid state")
)
