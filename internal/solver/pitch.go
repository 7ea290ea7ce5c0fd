package solver

import (
	"math"

	"github.com/tphakala/speechscope/internal/dsp"
)

// Search range shared by the pitch estimators.
const (
	DefaultMinPitch = 60.0
	DefaultMaxPitch = 500.0
)

// AutocorrelationPitch picks the shortest lag whose normalised
// autocorrelation peak is close to the best one, refined by a parabola
// through the neighbouring lags.
type AutocorrelationPitch struct {
	MinFrequency float64
	MaxFrequency float64
	// VoicingThreshold is the minimum normalised correlation of a voiced frame.
	VoicingThreshold float64
	// OctaveTolerance accepts an earlier peak within this fraction of the best.
	OctaveTolerance float64
}

// NewAutocorrelationPitch returns the estimator with speech defaults.
func NewAutocorrelationPitch() *AutocorrelationPitch {
	return &AutocorrelationPitch{
		MinFrequency:     DefaultMinPitch,
		MaxFrequency:     DefaultMaxPitch,
		VoicingThreshold: 0.45,
		OctaveTolerance:  0.9,
	}
}

// Name implements PitchSolver.
func (p *AutocorrelationPitch) Name() string { return "autocorrelation" }

// Solve implements PitchSolver.
func (p *AutocorrelationPitch) Solve(frame []float64, rate float64) (PitchResult, error) {
	if err := checkFrame(p.Name(), frame, rate); err != nil {
		return PitchResult{}, err
	}
	x := centred(frame)
	if dsp.RMS(x) < silenceFloor {
		return PitchResult{}, nil
	}

	minLag, maxLag, ok := lagRange(rate, p.MinFrequency, p.MaxFrequency, len(x))
	if !ok {
		return PitchResult{}, nil
	}

	// nacf[i] holds lag minLag-1+i so every candidate has both neighbours
	nacf := make([]float64, maxLag-minLag+3)
	for i := range nacf {
		nacf[i] = normalisedCorrelation(x, minLag-1+i)
	}

	best := math.Inf(-1)
	for i := 1; i < len(nacf)-1; i++ {
		best = math.Max(best, nacf[i])
	}
	if best < p.VoicingThreshold {
		return PitchResult{}, nil
	}

	for i := 1; i < len(nacf)-1; i++ {
		if nacf[i] < p.OctaveTolerance*best || nacf[i] < nacf[i-1] || nacf[i] < nacf[i+1] {
			continue
		}
		lag := float64(minLag-1+i) + parabolicOffset(nacf[i-1], nacf[i], nacf[i+1])
		return PitchResult{Voiced: true, Frequency: rate / lag}, nil
	}
	return PitchResult{}, nil
}

// AMDFPitch uses the average magnitude difference function: the period is
// the shortest lag whose dip is close to the deepest one.
type AMDFPitch struct {
	MinFrequency float64
	MaxFrequency float64
	// VoicingThreshold is the largest dip depth, relative to the mean
	// difference, that still counts as periodic.
	VoicingThreshold float64
	// OctaveTolerance accepts an earlier dip no higher than the deepest one
	// plus this fraction of the distance to the mean difference.
	OctaveTolerance float64
}

// NewAMDFPitch returns the estimator with speech defaults.
func NewAMDFPitch() *AMDFPitch {
	return &AMDFPitch{
		MinFrequency:     DefaultMinPitch,
		MaxFrequency:     DefaultMaxPitch,
		VoicingThreshold: 0.35,
		OctaveTolerance:  0.1,
	}
}

// Name implements PitchSolver.
func (p *AMDFPitch) Name() string { return "amdf" }

// Solve implements PitchSolver.
func (p *AMDFPitch) Solve(frame []float64, rate float64) (PitchResult, error) {
	if err := checkFrame(p.Name(), frame, rate); err != nil {
		return PitchResult{}, err
	}
	x := centred(frame)
	if dsp.RMS(x) < silenceFloor {
		return PitchResult{}, nil
	}

	minLag, maxLag, ok := lagRange(rate, p.MinFrequency, p.MaxFrequency, len(x))
	if !ok {
		return PitchResult{}, nil
	}

	d := make([]float64, maxLag-minLag+3)
	var mean float64
	for i := range d {
		lag := minLag - 1 + i
		var sum float64
		for j := 0; j+lag < len(x); j++ {
			sum += math.Abs(x[j] - x[j+lag])
		}
		d[i] = sum / float64(len(x)-lag)
		mean += d[i]
	}
	mean /= float64(len(d))

	deepest := math.Inf(1)
	for i := 1; i < len(d)-1; i++ {
		deepest = math.Min(deepest, d[i])
	}
	if mean == 0 || deepest/mean > p.VoicingThreshold {
		return PitchResult{}, nil
	}

	accept := deepest + p.OctaveTolerance*(mean-deepest)
	for i := 1; i < len(d)-1; i++ {
		if d[i] > accept || d[i] > d[i-1] || d[i] > d[i+1] {
			continue
		}
		lag := float64(minLag-1+i) + parabolicOffset(d[i-1], d[i], d[i+1])
		return PitchResult{Voiced: true, Frequency: rate / lag}, nil
	}
	return PitchResult{}, nil
}

// SpectralPitch scores candidate fundamentals by a weighted sum of the
// magnitudes at their harmonics and refines the winner on the spectrum peak.
type SpectralPitch struct {
	MinFrequency float64
	MaxFrequency float64
	Harmonics    int
	// HarmonicWeight scales harmonic h by HarmonicWeight^(h-1).
	HarmonicWeight float64
	// VoicingThreshold is the minimum share of the spectrum's energy that
	// the chosen fundamental's harmonics must carry.
	VoicingThreshold float64
}

// NewSpectralPitch returns the estimator with speech defaults.
func NewSpectralPitch() *SpectralPitch {
	return &SpectralPitch{
		MinFrequency:     DefaultMinPitch,
		MaxFrequency:     DefaultMaxPitch,
		Harmonics:        5,
		HarmonicWeight:   0.8,
		VoicingThreshold: 0.3,
	}
}

// Name implements PitchSolver.
func (p *SpectralPitch) Name() string { return "spectral" }

// Solve implements PitchSolver.
func (p *SpectralPitch) Solve(frame []float64, rate float64) (PitchResult, error) {
	if err := checkFrame(p.Name(), frame, rate); err != nil {
		return PitchResult{}, err
	}
	x := centred(frame)
	if dsp.RMS(x) < silenceFloor {
		return PitchResult{}, nil
	}
	dsp.ApplyWindow(x, dsp.Window(dsp.WindowHann, len(x)))

	fftSize := nextPow2(4 * len(x))
	mags := dsp.MagnitudeSpectrum(x, fftSize)
	binHz := rate / float64(fftSize)

	lo := max(1, int(math.Ceil(p.MinFrequency/binHz)))
	hi := min(len(mags)-2, int(p.MaxFrequency/binHz))
	if hi <= lo {
		return PitchResult{}, nil
	}

	bestBin, bestScore := 0, 0.0
	for b := lo; b <= hi; b++ {
		var score, w float64 = 0, 1
		for h := 1; h <= p.Harmonics; h++ {
			hb := b * h
			if hb >= len(mags) {
				break
			}
			score += w * localMax(mags, hb)
			w *= p.HarmonicWeight
		}
		if score > bestScore {
			bestBin, bestScore = b, score
		}
	}
	if bestBin == 0 {
		return PitchResult{}, nil
	}

	// snap to the strongest bin in the neighbourhood before refining
	bestBin = argmaxAround(mags, bestBin)
	if bestBin < 1 || bestBin >= len(mags)-1 {
		return PitchResult{}, nil
	}

	var harmonic, total float64
	for _, m := range mags {
		total += m * m
	}
	for h := 1; h <= p.Harmonics && bestBin*h < len(mags)-1; h++ {
		for _, b := range []int{bestBin*h - 1, bestBin * h, bestBin*h + 1} {
			harmonic += mags[b] * mags[b]
		}
	}
	if total == 0 || harmonic/total < p.VoicingThreshold {
		return PitchResult{}, nil
	}

	offset := parabolicOffset(logMag(mags[bestBin-1]), logMag(mags[bestBin]), logMag(mags[bestBin+1]))
	return PitchResult{Voiced: true, Frequency: (float64(bestBin) + offset) * binHz}, nil
}

func centred(frame []float64) []float64 {
	var mean float64
	for _, v := range frame {
		mean += v
	}
	mean /= float64(len(frame))
	out := make([]float64, len(frame))
	for i, v := range frame {
		out[i] = v - mean
	}
	return out
}

// lagRange converts a frequency range to lags, leaving room for a neighbour
// on each side and at least half a frame of overlap at the longest lag.
func lagRange(rate, minFreq, maxFreq float64, n int) (lo, hi int, ok bool) {
	lo = max(2, int(math.Floor(rate/maxFreq)))
	hi = min(int(math.Ceil(rate/minFreq)), n/2-1)
	return lo, hi, hi > lo
}

func normalisedCorrelation(x []float64, lag int) float64 {
	var xy, xx, yy float64
	for i := 0; i+lag < len(x); i++ {
		a, b := x[i], x[i+lag]
		xy += a * b
		xx += a * a
		yy += b * b
	}
	if xx == 0 || yy == 0 {
		return 0
	}
	return xy / math.Sqrt(xx*yy)
}

// parabolicOffset returns the vertex offset, in [-0.5, 0.5], of the parabola
// through three equally spaced points.
func parabolicOffset(a, b, c float64) float64 {
	denom := a - 2*b + c
	if denom == 0 {
		return 0
	}
	off := 0.5 * (a - c) / denom
	return math.Max(-0.5, math.Min(0.5, off))
}

func localMax(x []float64, i int) float64 {
	m := x[i]
	if i > 0 {
		m = math.Max(m, x[i-1])
	}
	if i+1 < len(x) {
		m = math.Max(m, x[i+1])
	}
	return m
}

func argmaxAround(x []float64, i int) int {
	best := i
	for _, j := range []int{i - 1, i + 1} {
		if j >= 0 && j < len(x) && x[j] > x[best] {
			best = j
		}
	}
	return best
}

func logMag(v float64) float64 {
	return math.Log(v + 1e-12)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
