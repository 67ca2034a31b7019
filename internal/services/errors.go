package services

import "errors"

// Enrollment service errors. They are returned wrapped in an
// errors.AppError so both errors.Is and the HTTP problem mapping work.
var (
	// ErrInvalidYear is returned before any I/O for an end year outside
	// the configured range.
	ErrInvalidYear = errors.New("invalid end year")

	// ErrNoDataForYear is returned when neither the district nor the
	// building source produced a usable row.
	ErrNoDataForYear = errors.New("no enrollment data for year")

	ErrNoYearsRequested = errors.New("no years requested")
	ErrInvalidShape     = errors.New("invalid shape")
)
