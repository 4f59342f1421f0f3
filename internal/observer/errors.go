package observer

import "errors"

var (
	// ErrSensorUnavailable is returned by Start when the sensor service reports itself unavailable.
	ErrSensorUnavailable = errors.New("sensor service unavailable")

	// ErrUnknownSampleType is returned when the configured sample type cannot be resolved.
	ErrUnknownSampleType = errors.New("unknown sample type")

	// ErrAuthorizationDenied is reported when the sensor service refuses the capability set.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrAlreadyStarted is returned by Start while a previous start is still active.
	ErrAlreadyStarted = errors.New("observer already started")

	// ErrClosed is returned by operations on a closed observer.
	ErrClosed = errors.New("observer closed")

	// ErrUnitMismatch is returned when a quantity cannot be converted to the canonical unit.
	ErrUnitMismatch = errors.New("unit mismatch")
)
