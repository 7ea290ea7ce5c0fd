package solver

import (
	"cmp"
	"math"
	"math/cmplx"
	"slices"

	"github.com/tphakala/speechscope/internal/errors"
)

// Limits applied to candidate resonances.
const (
	MinFormantFrequency = 90.0
	MaxFormantBandwidth = 400.0
)

// RootsFormant finds formants as the roots of the prediction polynomial.
type RootsFormant struct {
	MinFrequency float64
	MaxBandwidth float64
}

// NewRootsFormant returns the root solver with the default limits.
func NewRootsFormant() *RootsFormant {
	return &RootsFormant{MinFrequency: MinFormantFrequency, MaxBandwidth: MaxFormantBandwidth}
}

// Name implements FormantSolver.
func (f *RootsFormant) Name() string { return "lpc-roots" }

// Input implements FormantSolver.
func (f *RootsFormant) Input() InputKind { return InputCoefficients }

// Solve implements FormantSolver.
func (f *RootsFormant) Solve(in FormantInput) (FormantResult, error) {
	if err := checkRate(f.Name(), in.Rate); err != nil {
		return FormantResult{}, err
	}
	if len(in.Coefficients) < 2 {
		return FormantResult{}, errors.New(ErrInvalidOrder).
			Context("solver", f.Name()).
			Context("coefficients", len(in.Coefficients)).
			Build()
	}

	var formants []Formant
	for _, z := range polyRoots(in.Coefficients) {
		if imag(z) <= 0 {
			continue
		}
		freq := cmplx.Phase(z) * in.Rate / (2 * math.Pi)
		bw := -math.Log(cmplx.Abs(z)) * in.Rate / math.Pi
		if freq > f.MinFrequency && bw < f.MaxBandwidth && !math.IsNaN(bw) {
			formants = append(formants, Formant{Frequency: freq, Bandwidth: bw})
		}
	}
	sortFormants(formants)
	return FormantResult{Formants: formants}, nil
}

// polyRoots returns the roots of z^p + c[1]z^(p-1) + ... + c[p] using the
// Durand-Kerner iteration. c[0] is taken as 1.
func polyRoots(c []float64) []complex128 {
	p := len(c) - 1
	if p < 1 {
		return nil
	}

	roots := make([]complex128, p)
	seed := complex(0.4, 0.9)
	roots[0] = 1
	for i := range roots {
		if i > 0 {
			roots[i] = roots[i-1] * seed
		}
	}

	eval := func(z complex128) complex128 {
		v := complex(1, 0)
		for _, ci := range c[1:] {
			v = v*z + complex(ci, 0)
		}
		return v
	}

	const (
		maxIterations = 500
		tolerance     = 1e-12
	)
	for range maxIterations {
		var delta float64
		for i, zi := range roots {
			den := complex(1, 0)
			for j, zj := range roots {
				if i != j {
					den *= zi - zj
				}
			}
			if den == 0 {
				den = complex(tolerance, 0)
			}
			step := eval(zi) / den
			roots[i] = zi - step
			delta = math.Max(delta, cmplx.Abs(step))
		}
		if delta < tolerance {
			break
		}
	}
	return roots
}

// EnvelopeFormant picks formants from the peaks of an LPC envelope that it
// fits itself from raw audio.
type EnvelopeFormant struct {
	MinFrequency float64
	MaxBandwidth float64
	// Points is the number of envelope samples between 0 and Nyquist.
	Points int
	lpc    LinearPredictionSolver
}

// NewEnvelopeFormant returns the envelope peak picker using Burg analysis.
func NewEnvelopeFormant() *EnvelopeFormant {
	return &EnvelopeFormant{
		MinFrequency: MinFormantFrequency,
		MaxBandwidth: MaxFormantBandwidth,
		Points:       512,
		lpc:          NewBurgLPC(),
	}
}

// Name implements FormantSolver.
func (f *EnvelopeFormant) Name() string { return "spectral-peaks" }

// Input implements FormantSolver.
func (f *EnvelopeFormant) Input() InputKind { return InputAudio }

// Solve implements FormantSolver.
func (f *EnvelopeFormant) Solve(in FormantInput) (FormantResult, error) {
	if err := checkFrame(f.Name(), in.Audio, in.Rate); err != nil {
		return FormantResult{}, err
	}
	if energy(in.Audio) == 0 {
		return FormantResult{}, nil
	}

	order := min(2+int(in.Rate/1000), len(in.Audio)-1)
	if order < 2 {
		return FormantResult{}, nil
	}
	fit, err := f.lpc.Solve(in.Audio, order, in.Rate)
	if err != nil {
		return FormantResult{}, err
	}

	env := envelope(fit.Coefficients, f.Points)
	hzPerPoint := in.Rate / 2 / float64(f.Points-1)

	var formants []Formant
	for i := 1; i < len(env)-1; i++ {
		if env[i] <= env[i-1] || env[i] < env[i+1] {
			continue
		}
		freq := (float64(i) + parabolicOffset(env[i-1], env[i], env[i+1])) * hzPerPoint
		bw := halfPowerWidth(env, i) * hzPerPoint
		if freq > f.MinFrequency && bw < f.MaxBandwidth {
			formants = append(formants, Formant{Frequency: freq, Bandwidth: bw})
		}
	}
	sortFormants(formants)
	return FormantResult{Formants: formants}, nil
}

// envelope returns the power response 1/|A(e^jw)|^2 in dB at n points
// from 0 to Nyquist.
func envelope(a []float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		w := math.Pi * float64(i) / float64(n-1)
		var s complex128
		for k, ak := range a {
			s += complex(ak, 0) * cmplx.Exp(complex(0, -w*float64(k)))
		}
		out[i] = -10 * math.Log10(math.Max(real(s)*real(s)+imag(s)*imag(s), 1e-300))
	}
	return out
}

// halfPowerWidth measures the width of the peak at i, in points, 3 dB below
// its top. A side that never drops 3 dB is treated as infinitely wide.
func halfPowerWidth(env []float64, i int) float64 {
	level := env[i] - 3
	lo, hi := -1.0, -1.0
	for j := i; j > 0; j-- {
		if env[j-1] <= level {
			lo = float64(j-1) + (env[j-1]-level)/(env[j-1]-env[j])
			break
		}
	}
	for j := i; j < len(env)-1; j++ {
		if env[j+1] <= level {
			hi = float64(j) + (env[j]-level)/(env[j]-env[j+1])
			break
		}
	}
	if lo < 0 || hi < 0 {
		return math.Inf(1)
	}
	return hi - lo
}

func sortFormants(f []Formant) {
	slices.SortFunc(f, func(a, b Formant) int {
		return cmp.Compare(a.Frequency, b.Frequency)
	})
}
