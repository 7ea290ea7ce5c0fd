// Package solver defines the analysis roles the pipeline invokes per frame
// and the algorithms that implement them.
//
// Solvers are pure request/response strategies. Analytical nulls (silence,
// no formants) are ordinary results; errors are reserved for callers that
// break the contract, such as an empty frame or a non-positive rate.
package solver

import (
	"math"

	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/logger"
)

// ComponentSolver identifies solver errors
const ComponentSolver = "solver"

// GetLogger returns the solver logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("solver")
}

var (
	// ErrEmptyFrame is returned when a solver is given no samples.
	ErrEmptyFrame = errors.New(errors.NewStd("empty analysis frame")).
			Component(ComponentSolver).
			Category(errors.CategoryValidation).
			Build()

	// ErrInvalidRate is returned for a non-positive or non-finite sample rate.
	ErrInvalidRate = errors.New(errors.NewStd("invalid sample rate")).
			Component(ComponentSolver).
			Category(errors.CategoryValidation).
			Build()

	// ErrInvalidOrder is returned for a prediction order the frame cannot support.
	ErrInvalidOrder = errors.New(errors.NewStd("invalid linear prediction order")).
			Component(ComponentSolver).
			Category(errors.CategoryValidation).
			Build()

	// ErrUnknownAlgorithm is returned by the registry for an unregistered name.
	ErrUnknownAlgorithm = errors.New(errors.NewStd("unknown solver algorithm")).
				Component(ComponentSolver).
				Category(errors.CategoryValidation).
				Build()
)

// PitchResult is the outcome of one pitch estimate.
type PitchResult struct {
	Voiced    bool
	Frequency float64
}

// LPCResult holds the prediction polynomial a[0..order] with a[0] = 1 and
// the prediction error gain.
type LPCResult struct {
	Coefficients []float64
	Gain         float64
}

// Formant is one vocal tract resonance.
type Formant struct {
	Frequency float64
	Bandwidth float64
}

// FormantResult lists formants in ascending frequency. It may be empty.
type FormantResult struct {
	Formants []Formant
}

// GlottalResult is the estimated glottal flow for a frame.
type GlottalResult struct {
	Signal []float64
}

// InputKind tells the pipeline what a formant solver consumes.
type InputKind int

const (
	// InputCoefficients solvers take linear prediction coefficients.
	InputCoefficients InputKind = iota
	// InputAudio solvers take the preprocessed frame itself.
	InputAudio
)

func (k InputKind) String() string {
	if k == InputAudio {
		return "audio"
	}
	return "coefficients"
}

// FormantInput carries whichever input the solver's InputKind asks for.
type FormantInput struct {
	Coefficients []float64
	Audio        []float64
	Rate         float64
}

// PitchSolver estimates the fundamental frequency of a frame.
type PitchSolver interface {
	Name() string
	Solve(frame []float64, rate float64) (PitchResult, error)
}

// LinearPredictionSolver fits an all-pole model to a frame.
type LinearPredictionSolver interface {
	Name() string
	Solve(frame []float64, order int, rate float64) (LPCResult, error)
}

// FormantSolver locates vocal tract resonances.
type FormantSolver interface {
	Name() string
	Input() InputKind
	Solve(input FormantInput) (FormantResult, error)
}

// InverseGlottalSolver estimates the glottal source of a voiced frame.
type InverseGlottalSolver interface {
	Name() string
	Solve(frame []float64, rate float64) (GlottalResult, error)
}

func checkFrame(solver string, frame []float64, rate float64) error {
	if len(frame) == 0 {
		return errors.New(ErrEmptyFrame).
			Context("solver", solver).
			Build()
	}
	return checkRate(solver, rate)
}

func checkRate(solver string, rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return errors.New(ErrInvalidRate).
			Context("solver", solver).
			Context("rate", rate).
			Build()
	}
	return nil
}

// silenceFloor is the RMS below which a frame is treated as silence.
const silenceFloor = 1e-5

func energy(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}
