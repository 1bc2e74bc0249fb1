// Package errs defines the error kinds surfaced by the booking engine. Package
// level errors wrap one of these so callers can branch with errors.Is.
package errs

import "errors"

var (
	ErrInvalidDateRange             = errors.New("invalid date range")
	ErrCapacityExceeded             = errors.New("capacity exceeded")
	ErrRoomUnavailable              = errors.New("room unavailable")
	ErrInvalidTransition            = errors.New("invalid transition")
	ErrNotFound                     = errors.New("not found")
	ErrForbidden                    = errors.New("forbidden")
	ErrReferenceGenerationExhausted = errors.New("reference generation exhausted")
)

// Kind returns the matching error kind or nil when err is not one of them.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

var kinds = []error{
	ErrInvalidDateRange,
	ErrCapacityExceeded,
	ErrRoomUnavailable,
	ErrInvalidTransition,
	ErrNotFound,
	ErrForbidden,
	ErrReferenceGenerationExhausted,
}

// ByName maps a kind's message back to the kind, for errors restored from storage.
func ByName(name string) error {
	for _, kind := range kinds {
		if kind.Error() == name {
			return kind
		}
	}
	return nil
}
