package buffer

import (
	"github.com/tphakala/speechscope/internal/errors"
)

// ComponentBuffer identifies sample buffer errors
const ComponentBuffer = "audiocore.buffer"

var (
	// ErrPullCancelled is returned by Pull once the buffer's hub was cancelled
	// or the buffer was closed. No samples are copied.
	ErrPullCancelled = errors.New(errors.NewStd("sample buffer pull cancelled")).
				Component(ComponentBuffer).
				Category(errors.CategoryCancellation).
				Build()

	// ErrInvalidPullSize is returned for an empty request or one larger than the buffer capacity.
	ErrInvalidPullSize = errors.New(errors.NewStd("invalid pull size")).
				Component(ComponentBuffer).
				Category(errors.CategoryValidation).
				Build()
)
