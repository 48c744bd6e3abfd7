package lifecycle

import "errors"

var (
	// ErrMissingScheduleInput is returned when total, start, end or periodicity is absent.
	ErrMissingScheduleInput = errors.New("missing_schedule_input")
	// ErrInvalidDateRange is returned when the end date is before the start date.
	ErrInvalidDateRange = errors.New("invalid_date_range")
)
