package resample

import (
	"github.com/tphakala/speechscope/internal/errors"
)

// ComponentResample identifies resampler errors
const ComponentResample = "audiocore.resample"

var (
	// ErrInvalidRate is returned for non-positive or non-finite sample rates.
	ErrInvalidRate = errors.New(errors.NewStd("invalid sample rate")).
			Component(ComponentResample).
			Category(errors.CategoryValidation).
			Build()

	// ErrUnknownQuality is returned for an unrecognised quality preset name.
	ErrUnknownQuality = errors.New(errors.NewStd("unknown resample quality")).
				Component(ComponentResample).
				Category(errors.CategoryConfiguration).
				Build()

	// ErrDelayMeasurement is returned when the group delay cannot be located.
	ErrDelayMeasurement = errors.New(errors.NewStd("resampler delay measurement failed")).
				Component(ComponentResample).
				Category(errors.CategoryResample).
				Build()
)
