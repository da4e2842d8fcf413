package lifecycle

import "errors"

var (
	// ErrInvalidTransition means the booking's status does not allow the
	// requested action, e.g. verifying a rejected booking.
	ErrInvalidTransition = errors.New("invalid booking transition")
	// ErrValidation means the request was rejected before any bed changed.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence means the booking could not be stored.  Any bed change
	// made for the request has already been compensated.
	ErrPersistence = errors.New("booking could not be stored")
)
