package pipeline

import (
	"github.com/tphakala/speechscope/internal/errors"
)

// ComponentPipeline identifies pipeline errors
const ComponentPipeline = "pipeline"

var (
	// ErrInitialization is returned by New when the pipeline cannot be built.
	ErrInitialization = errors.New(errors.NewStd("pipeline initialisation failed")).
				Component(ComponentPipeline).
				Category(errors.CategoryValidation).
				Build()

	// ErrClosed is returned by ProcessAll after Close.
	ErrClosed = errors.New(errors.NewStd("pipeline closed")).
			Component(ComponentPipeline).
			Category(errors.CategoryState).
			Build()

	// ErrWorkerPanic wraps a panic recovered from an analysis worker.
	ErrWorkerPanic = errors.New(errors.NewStd("analysis worker panicked")).
			Component(ComponentPipeline).
			Category(errors.CategoryWorker).
			Build()

	// ErrJoinTimeout is returned by Close when workers did not exit in time.
	ErrJoinTimeout = errors.New(errors.NewStd("analysis workers did not stop in time")).
			Component(ComponentPipeline).
			Category(errors.CategoryTimeout).
			Build()
)

func initError(reason string) error {
	return errors.New(ErrInitialization).
		Context("reason", reason).
		Build()
}
