package assignment

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by the assignment engine.
//
// All of them are business-rule rejections: they are returned synchronously to the
// caller and never retried by the engine. Use errors.Is to classify and errors.As
// with the detail types below to read the operative numbers.
var (
	// ErrNotFound is returned when an order or restriction does not exist or was soft deleted.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyClaimed is returned when assigning an order that already has a worker.
	ErrAlreadyClaimed = errors.New("order already claimed")

	// ErrQuotaExceeded is returned when a restricted worker reached today's ceiling.
	ErrQuotaExceeded = errors.New("daily quota exceeded")

	// ErrWorkloadCapExceeded is returned when a worker already holds the maximum number of active orders.
	ErrWorkloadCapExceeded = errors.New("workload cap exceeded")

	// ErrInvalidTransition is returned when a status change breaks the order lifecycle rules.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrForbidden is returned when the actor may not perform the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrNoActiveRestriction is returned when removing a restriction that does not exist.
	ErrNoActiveRestriction = errors.New("no active restriction")

	// ErrInvalidArgument is returned for malformed input such as an unknown status or out-of-range days.
	ErrInvalidArgument = errors.New("invalid argument")
)

// QuotaExceededError carries the numbers behind an ErrQuotaExceeded rejection.
type QuotaExceededError struct {
	Worker          string
	MaxPerDay       int
	AssignedToday   int
	Remaining       int
	RestrictionEnds time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: worker %s has been assigned %d of %d orders today (restricted until %s)",
		ErrQuotaExceeded, e.Worker, e.AssignedToday, e.MaxPerDay, e.RestrictionEnds.Format(time.RFC3339))
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// WorkloadCapError carries the numbers behind an ErrWorkloadCapExceeded rejection.
type WorkloadCapError struct {
	Worker  string
	Current int
	Cap     int
}

func (e *WorkloadCapError) Error() string {
	return fmt.Sprintf("%s: worker %s holds %d active orders (cap %d)", ErrWorkloadCapExceeded, e.Worker, e.Current, e.Cap)
}

func (e *WorkloadCapError) Unwrap() error { return ErrWorkloadCapExceeded }

// TransitionError describes a rejected lifecycle change.
type TransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	if e.From == "" && e.To == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidTransition, e.Reason)
	}
	return fmt.Sprintf("%s: %s -> %s: %s", ErrInvalidTransition, e.From, e.To, e.Reason)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}
