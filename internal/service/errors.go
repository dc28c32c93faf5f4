package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/eventix-booking/internal/repository"
)

// Failure kinds returned by the booking workflow.  Callers distinguish
// them with errors.Is; the messages carry the details through wrapping.
var (
	// ErrNotFound means a referenced event, reservation, payment or ticket
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState means the operation is not allowed in the current
	// state, such as paying a cancelled reservation.
	ErrInvalidState = errors.New("invalid state")
	// ErrCapacityExceeded means the event has fewer available seats than
	// requested.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrValidation means the input was rejected before any state was read.
	ErrValidation = errors.New("validation failed")
	// ErrConsistencyViolation means a seat release would push an event
	// above its total capacity.  It always aborts the transaction.
	ErrConsistencyViolation = errors.New("consistency violation")
)

// notFound maps repository.ErrNotFound onto ErrNotFound and wraps any
// other failure.  what and key name the looked up entity in the message.
func notFound(err error, what string, key any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s %v: %w", what, key, ErrNotFound)
	}
	return fmt.Errorf("loading %s %v: %w", what, key, err)
}

// kind returns a short label for an error, used as a metric label value.
func kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConsistencyViolation):
		return "consistency"
	}
	return "internal"
}
