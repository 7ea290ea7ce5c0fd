package resample

import (
	"fmt"
	"math"
	"time"

	"github.com/patrickmn/go-cache"
	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/logger"
)

const (
	// calibrationHz is the carrier of the calibration burst, inside the
	// passband of every supported rate pair
	calibrationHz = 250.0
	// burstCycles is the envelope standard deviation in carrier periods
	burstCycles = 3.0
	// burstCenterSeconds leaves room for a negative delay before the burst
	burstCenterSeconds = 0.15
	measureSeconds     = 0.35
	measureChunk       = 512

	// minCorrelation is the share of the reference energy the best match
	// must reach; anything less means the burst did not come through
	minCorrelation = 0.25
)

// delays caches measured group delays per rate pair and quality. Delay is a
// property of the filter design, so entries never expire.
var delays = cache.New(cache.NoExpiration, 0)

func delayKey(in, out float64, quality string) string {
	return fmt.Sprintf("%g>%g@%s", in, out, quality)
}

// groupDelay returns the delay in output samples of a fresh engine for the
// given conversion, measuring it on first use.
func groupDelay(in, out float64, quality string) (float64, error) {
	if in == out {
		return 0, nil
	}
	key := delayKey(in, out, quality)
	if d, ok := delays.Get(key); ok {
		return d.(float64), nil
	}

	start := time.Now()
	d, err := measureDelay(in, out, quality)
	if err != nil {
		return 0, err
	}
	delays.Set(key, d, cache.NoExpiration)

	GetLogger().Debug("measured resampler delay",
		logger.Float64("input_rate", in),
		logger.Float64("output_rate", out),
		logger.String("quality", quality),
		logger.Float64("delay_samples", d),
		logger.Duration("elapsed", time.Since(start)))
	return d, nil
}

// calibrationBurst is a Gaussian-windowed cosine. Unlike a unit impulse it
// is band-limited, so every polyphase branch of the engine passes it intact.
type calibrationBurst struct {
	freq  float64
	sigma float64
}

func newCalibrationBurst(in, out float64) calibrationBurst {
	f := min(calibrationHz, min(in, out)/8)
	return calibrationBurst{freq: f, sigma: burstCycles / f}
}

// at evaluates the burst t seconds from its centre.
func (b calibrationBurst) at(t float64) float64 {
	return math.Exp(-t*t/(2*b.sigma*b.sigma)) * math.Cos(2*math.Pi*b.freq*t)
}

// reference samples the burst on the output grid over four standard
// deviations either side of the centre and returns the centre index.
func (b calibrationBurst) reference(rate float64) (ref []float64, center int) {
	center = int(math.Ceil(4 * b.sigma * rate))
	ref = make([]float64, 2*center+1)
	for m := range ref {
		ref[m] = b.at(float64(m-center) / rate)
	}
	return ref, center
}

// measureDelay runs a calibration burst through a new engine and locates it
// in the output by cross-correlation with the ideal burst at the output rate.
func measureDelay(in, out float64, quality string) (float64, error) {
	engine, err := newEngine(in, out, quality)
	if err != nil {
		return 0, err
	}

	burst := newCalibrationBurst(in, out)
	total := int(math.Ceil(in * measureSeconds))
	signal := make([]float64, total)
	for k := range signal {
		signal[k] = burst.at(float64(k)/in - burstCenterSeconds)
	}

	var response []float64
	for off := 0; off < total; off += measureChunk {
		chunk, err := engine.Process(signal[off:min(off+measureChunk, total)])
		if err != nil {
			return 0, wrapEngineErr(err, "measure_delay")
		}
		response = append(response, chunk...)
	}
	tail, err := engine.Flush()
	if err != nil {
		return 0, wrapEngineErr(err, "measure_delay_flush")
	}
	response = append(response, tail...)

	ref, center := burst.reference(out)
	corr := crossCorrelate(response, ref)
	peak, best := parabolicPeak(corr)
	if best < 0 || corr[best] < minCorrelation*energy(ref) {
		return 0, errors.New(ErrDelayMeasurement).
			Context("input_rate", in).
			Context("output_rate", out).
			Build()
	}

	// corr[i] aligns ref[0] with response[i], so the burst centre sits at i+center
	return peak + float64(center) - burstCenterSeconds*out, nil
}

// crossCorrelate returns c[i] = sum over m of y[i+m]*ref[m] for every lag
// where ref fits inside y.
func crossCorrelate(y, ref []float64) []float64 {
	n := len(y) - len(ref) + 1
	if n <= 0 {
		return nil
	}
	c := make([]float64, n)
	for i := range c {
		var sum float64
		for m, r := range ref {
			sum += y[i+m] * r
		}
		c[i] = sum
	}
	return c
}

func energy(x []float64) float64 {
	var e float64
	for _, v := range x {
		e += v * v
	}
	return e
}

// parabolicPeak returns the fractional position of the largest value and its
// integer index, or -1 for an empty slice.
func parabolicPeak(y []float64) (float64, int) {
	if len(y) == 0 {
		return 0, -1
	}
	best := 0
	for i, v := range y {
		if v > y[best] {
			best = i
		}
	}
	if best == 0 || best == len(y)-1 {
		return float64(best), best
	}
	a, b, c := y[best-1], y[best], y[best+1]
	den := a - 2*b + c
	if den == 0 {
		return float64(best), best
	}
	return float64(best) + 0.5*(a-c)/den, best
}

func qualitySpec(name string) (resampling.QualitySpec, error) {
	switch name {
	case "quick":
		return resampling.QualitySpec{Preset: resampling.QualityQuick}, nil
	case "", "low":
		return resampling.QualitySpec{Preset: resampling.QualityLow}, nil
	case "medium":
		return resampling.QualitySpec{Preset: resampling.QualityMedium}, nil
	case "high":
		return resampling.QualitySpec{Preset: resampling.QualityHigh}, nil
	case "veryhigh":
		return resampling.QualitySpec{Preset: resampling.QualityVeryHigh}, nil
	default:
		return resampling.QualitySpec{}, errors.New(ErrUnknownQuality).
			Context("quality", name).
			Build()
	}
}

func newEngine(in, out float64, quality string) (resampling.Resampler, error) {
	spec, err := qualitySpec(quality)
	if err != nil {
		return nil, err
	}
	engine, err := resampling.New(&resampling.Config{
		InputRate:  in,
		OutputRate: out,
		Channels:   1,
		Quality:    spec,
	})
	if err != nil {
		return nil, wrapEngineErr(err, "create_engine")
	}
	return engine, nil
}

func wrapEngineErr(err error, operation string) error {
	return errors.New(err).
		Component(ComponentResample).
		Category(errors.CategoryResample).
		Context("operation", operation).
		Build()
}
