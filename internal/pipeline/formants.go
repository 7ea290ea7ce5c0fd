package pipeline

import (
	"math"

	"github.com/tphakala/speechscope/internal/audiocore/resample"
	"github.com/tphakala/speechscope/internal/datastore"
	"github.com/tphakala/speechscope/internal/dsp"
	"github.com/tphakala/speechscope/internal/solver"
	"github.com/tphakala/speechscope/internal/timetrack"
)

const (
	formantFrame          = 0.020 // seconds
	formantPreEmphasis    = 100.0 // Hz
	formantGaussianAlpha  = 2.5
	formantAudioRate      = 16000.0
	formantLPCRate        = 11000.0
	defaultFormantLPOrder = 10

	// resampler warm-up can leave the first frames too short to analyse
	minFormantSamples = 64
)

// formantAnalyser estimates formant frequencies either from the audio itself
// or from linear prediction coefficients, depending on the solver input kind.
type formantAnalyser struct {
	p       *Pipeline
	input   solver.InputKind
	rs      *resample.Resampler
	outRate float64
	buf     []float64
}

func newFormantAnalyser(p *Pipeline, rate float64) (*formantAnalyser, error) {
	a := &formantAnalyser{p: p, input: p.solvers.Formant.Input()}
	a.outRate = formantLPCRate
	if a.input == solver.InputAudio {
		a.outRate = formantAudioRate
	}
	rs, err := resample.New(rate, a.outRate, resample.WithQuality(p.resampleQuality))
	if err != nil {
		return nil, err
	}
	a.rs = rs
	return a, nil
}

func (a *formantAnalyser) name() string { return StreamFormants }

func (a *formantAnalyser) frameLength(rate float64) int {
	return frameSamples(formantFrame, rate)
}

func (a *formantAnalyser) analyse(frame []float32, rate, t float64) error {
	if err := a.rs.SetInputRate(rate); err != nil {
		return err
	}

	a.buf = toFloat64(a.buf, frame)
	dsp.PreEmphasis(a.buf, dsp.PreEmphasisCoefficient(formantPreEmphasis, rate))
	dsp.ApplyWindow(a.buf, dsp.GaussianWindow(len(a.buf), formantGaussianAlpha))

	x, err := a.rs.ProcessFloat64(a.buf)
	if err != nil {
		return err
	}

	at := t - a.rs.GetDelay()/a.outRate
	if len(x) < minFormantSamples {
		a.insert(at, nil)
		return nil
	}

	in := solver.FormantInput{Audio: x, Rate: a.outRate}
	if a.input == solver.InputCoefficients {
		order := a.p.cfg.LPOrder()
		if order < 1 {
			order = defaultFormantLPOrder
		}
		lpc, err := a.p.solvers.LinearPrediction.Solve(x, order, a.outRate)
		if err != nil {
			return err
		}
		in = solver.FormantInput{Coefficients: lpc.Coefficients, Rate: a.outRate}
	}

	res, err := a.p.solvers.Formant.Solve(in)
	if err != nil {
		return err
	}

	a.insert(at, res.Formants)
	return nil
}

// insert writes one value per formant track, absent where formants has no
// finite frequency.
func (a *formantAnalyser) insert(at float64, formants []solver.Formant) {
	var before, after uint64
	a.p.store.Update(func(w *datastore.WriteTxn) {
		before = w.Formant(0).Discarded()
		for i := range w.FormantCount() {
			value := timetrack.None[float64]()
			if i < len(formants) {
				if f := formants[i].Frequency; !math.IsNaN(f) && !math.IsInf(f, 0) {
					value = timetrack.Some(f)
				}
			}
			w.Formant(i).Insert(at, value)
		}
		after = w.Formant(0).Discarded()
	})
	a.p.noteRewind(a.name(), before, after)
}
