package analysis

import "github.com/tphakala/speechscope/internal/errors"

// ComponentAnalysis identifies session errors
const ComponentAnalysis = "analysis"

var (
	// ErrDrainTimeout is returned when workers do not consume the tail of a
	// finished input in time.
	ErrDrainTimeout = errors.New(errors.NewStd("timed out waiting for workers to drain")).
			Component(ComponentAnalysis).
			Category(errors.CategoryTimeout).
			Build()

	// ErrNoInput is returned by FileAnalysis without an input path.
	ErrNoInput = errors.New(errors.NewStd("no input file given")).
			Component(ComponentAnalysis).
			Category(errors.CategoryValidation).
			Build()
)
