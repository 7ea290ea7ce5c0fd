package solver

import (
	"github.com/tphakala/speechscope/internal/dsp"
)

// IAIF estimates the glottal flow by iterative adaptive inverse filtering:
// a first pass removes the glottal tilt to fit the vocal tract, whose
// inverse filter then exposes the source, and a second pass repeats both
// fits on the refined estimate. Lip radiation is cancelled with a leaky
// integrator.
type IAIF struct {
	// VocalTractOrder of zero derives the order from the sample rate.
	VocalTractOrder int
	GlottalOrder    int
	// Leak is the leaky integrator coefficient.
	Leak float64
	lpc  LinearPredictionSolver
}

// NewIAIF returns the estimator with the usual orders for speech.
func NewIAIF() *IAIF {
	return &IAIF{
		GlottalOrder: 4,
		Leak:         0.99,
		lpc:          NewAutocorrelationLPC(),
	}
}

// Name implements InverseGlottalSolver.
func (g *IAIF) Name() string { return "iaif" }

// Solve implements InverseGlottalSolver.
func (g *IAIF) Solve(frame []float64, rate float64) (GlottalResult, error) {
	if err := checkFrame(g.Name(), frame, rate); err != nil {
		return GlottalResult{}, err
	}
	if dsp.RMS(frame) < silenceFloor {
		return GlottalResult{Signal: make([]float64, len(frame))}, nil
	}

	vtOrder := g.VocalTractOrder
	if vtOrder == 0 {
		vtOrder = 2 + int(rate/1000)
	}
	vtOrder = min(vtOrder, len(frame)-1)
	gOrder := min(g.GlottalOrder, len(frame)-1)
	if vtOrder < 1 || gOrder < 1 {
		return GlottalResult{Signal: make([]float64, len(frame))}, nil
	}

	x := centred(frame)

	// first pass: remove glottal tilt, fit tract, inverse filter
	tilt, err := g.fit(x, 1, rate)
	if err != nil {
		return GlottalResult{}, err
	}
	tract, err := g.fit(InverseFilter(x, tilt), vtOrder, rate)
	if err != nil {
		return GlottalResult{}, err
	}
	source := g.integrate(InverseFilter(x, tract))

	// second pass on the refined source estimate
	glottal, err := g.fit(source, gOrder, rate)
	if err != nil {
		return GlottalResult{}, err
	}
	tract, err = g.fit(g.integrate(InverseFilter(x, glottal)), vtOrder, rate)
	if err != nil {
		return GlottalResult{}, err
	}
	return GlottalResult{Signal: g.integrate(InverseFilter(x, tract))}, nil
}

func (g *IAIF) fit(x []float64, order int, rate float64) ([]float64, error) {
	w := make([]float64, len(x))
	copy(w, x)
	dsp.ApplyWindow(w, dsp.Window(dsp.WindowHann, len(w)))
	res, err := g.lpc.Solve(w, order, rate)
	if err != nil {
		return nil, err
	}
	return res.Coefficients, nil
}

func (g *IAIF) integrate(x []float64) []float64 {
	out := make([]float64, len(x))
	var acc float64
	for i, v := range x {
		acc = v + g.Leak*acc
		out[i] = acc
	}
	return out
}
