package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrNotifierClosed  = errors.New("notifier closed")
	ErrInvalidLimit    = errors.New("invalid limit")
)
