// Package resample converts analysis frames between sample rates with a
// known, fixed group delay.
//
// The delay of each rate pair is measured once and cached. When a rate
// changes the engine is rebuilt, so filter history is lost; Generation
// increments so consumers can mark the seam in their tracks.
package resample

import (
	"math"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/logger"
)

// DefaultQuality is the engine preset used when none is configured.
const DefaultQuality = "low"

// GetLogger returns the resampler logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("audiocore.resample")
}

// Option configures a Resampler.
type Option func(*Resampler)

// WithQuality selects the engine preset: quick, low, medium, high or veryhigh.
func WithQuality(quality string) Option {
	return func(r *Resampler) { r.quality = quality }
}

// Resampler is a streaming mono rate converter. It is not safe for
// concurrent Process calls; each analysis worker owns its own.
type Resampler struct {
	mu sync.Mutex

	inRate  float64
	outRate float64
	quality string

	engine     resampling.Resampler // nil when the rates are equal
	delay      float64
	generation uint64

	scratch []float64
}

// New creates a resampler from inRate to outRate.
func New(inRate, outRate float64, opts ...Option) (*Resampler, error) {
	r := &Resampler{quality: DefaultQuality}
	for _, opt := range opts {
		opt(r)
	}
	if _, err := qualitySpec(r.quality); err != nil {
		return nil, err
	}
	if err := r.rebuild(inRate, outRate); err != nil {
		return nil, err
	}
	r.generation = 0
	return r, nil
}

func validRate(rate float64) bool {
	return rate > 0 && !math.IsInf(rate, 0) && !math.IsNaN(rate)
}

// rebuild recreates the engine for the given rates. Called with mu held or
// before the resampler is shared.
func (r *Resampler) rebuild(inRate, outRate float64) error {
	if !validRate(inRate) || !validRate(outRate) {
		return errors.New(ErrInvalidRate).
			Context("input_rate", inRate).
			Context("output_rate", outRate).
			Build()
	}

	var engine resampling.Resampler
	if inRate != outRate {
		var err error
		if engine, err = newEngine(inRate, outRate, r.quality); err != nil {
			return err
		}
	}
	delay, err := groupDelay(inRate, outRate, r.quality)
	if err != nil {
		return err
	}

	r.inRate, r.outRate = inRate, outRate
	r.engine = engine
	r.delay = delay
	r.generation++
	return nil
}

// Process converts in from the input rate to the output rate. The output
// length varies per call by a few samples around GetExpectedOutLength.
func (r *Resampler) Process(in []float32) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cap(r.scratch) < len(in) {
		r.scratch = make([]float64, len(in))
	}
	buf := r.scratch[:len(in)]
	for i, s := range in {
		buf[i] = float64(s)
	}
	return r.processLocked(buf)
}

// ProcessFloat64 is Process for callers that already hold float64 samples.
// It shares the stream state with Process.
func (r *Resampler) ProcessFloat64(in []float64) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processLocked(in)
}

func (r *Resampler) processLocked(buf []float64) ([]float64, error) {
	if r.engine == nil {
		out := make([]float64, len(buf))
		copy(out, buf)
		return out, nil
	}

	res, err := r.engine.Process(buf)
	if err != nil {
		return nil, wrapEngineErr(err, "process")
	}
	out := make([]float64, len(res))
	copy(out, res)
	return out, nil
}

// GetDelay returns the group delay in output-rate samples.
func (r *Resampler) GetDelay() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delay
}

// GetRequiredInputLength returns the input length needed for outLen output samples.
func (r *Resampler) GetRequiredInputLength(outLen int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(math.Ceil(float64(outLen) * r.inRate / r.outRate))
}

// GetExpectedOutLength returns the nominal output length for inLen input samples.
func (r *Resampler) GetExpectedOutLength(inLen int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(math.Round(float64(inLen) * r.outRate / r.inRate))
}

// InputRate returns the configured input rate.
func (r *Resampler) InputRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inRate
}

// OutputRate returns the configured output rate.
func (r *Resampler) OutputRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outRate
}

// Generation counts engine rebuilds caused by rate changes.
func (r *Resampler) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// SetInputRate changes the input rate, resetting filter state if it differs.
func (r *Resampler) SetInputRate(rate float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rate == r.inRate {
		return nil
	}
	return r.rebuild(rate, r.outRate)
}

// SetOutputRate changes the output rate, resetting filter state if it differs.
func (r *Resampler) SetOutputRate(rate float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rate == r.outRate {
		return nil
	}
	return r.rebuild(r.inRate, rate)
}

// SetRate changes both rates with a single reset.
func (r *Resampler) SetRate(inRate, outRate float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inRate == r.inRate && outRate == r.outRate {
		return nil
	}
	return r.rebuild(inRate, outRate)
}
