package composite

import "errors"

var (
	// ErrMalformedSchedule indicates a profile or its schedule violates the
	// structural invariants (ordering, first offset 0, required fields).
	ErrMalformedSchedule = errors.New("malformed schedule")

	// ErrUnboundedRecurrence indicates a recurring profile without validTo
	// would expand to more occurrences than allowed within the window.
	ErrUnboundedRecurrence = errors.New("unbounded recurrence")

	// ErrUnitMismatch indicates the profiles do not share one charging rate
	// unit.
	ErrUnitMismatch = errors.New("charging rate unit mismatch")

	// ErrInvalidWindow indicates the requested window is empty, reversed or
	// not aligned to whole seconds.
	ErrInvalidWindow = errors.New("invalid time window")
)
