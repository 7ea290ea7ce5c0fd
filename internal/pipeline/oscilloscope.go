package pipeline

import (
	"github.com/tphakala/speechscope/internal/audiocore/resample"
	"github.com/tphakala/speechscope/internal/datastore"
)

// OscilloscopeRate is the sample rate of the sound and glottal tracks.
const OscilloscopeRate = 8000.0

const (
	oscilloscopeFrame = 0.080 // seconds

	minGlottalSamples = 64
)

// oscilloscopeAnalyser stores the band-limited waveform together with its
// estimated glottal source.
type oscilloscopeAnalyser struct {
	p  *Pipeline
	rs *resample.Resampler
}

func newOscilloscopeAnalyser(p *Pipeline, rate float64) (*oscilloscopeAnalyser, error) {
	rs, err := resample.New(rate, OscilloscopeRate, resample.WithQuality(p.resampleQuality))
	if err != nil {
		return nil, err
	}
	return &oscilloscopeAnalyser{p: p, rs: rs}, nil
}

func (a *oscilloscopeAnalyser) name() string { return StreamOscilloscope }

func (a *oscilloscopeAnalyser) frameLength(rate float64) int {
	return frameSamples(oscilloscopeFrame, rate)
}

func (a *oscilloscopeAnalyser) analyse(frame []float32, rate, t float64) error {
	if err := a.rs.SetInputRate(rate); err != nil {
		return err
	}
	sound, err := a.rs.Process(frame)
	if err != nil {
		return err
	}
	if len(sound) < minGlottalSamples {
		return nil
	}

	res, err := a.p.solvers.InverseGlottal.Solve(sound, OscilloscopeRate)
	if err != nil {
		return err
	}

	at := t - a.rs.GetDelay()/OscilloscopeRate
	var before, after uint64
	a.p.store.Update(func(w *datastore.WriteTxn) {
		before = w.Sound().Discarded()
		w.Sound().Insert(at, sound)
		w.Glottal().Insert(at, res.Signal)
		after = w.Sound().Discarded()
	})
	a.p.noteRewind(a.name(), before, after)
	return nil
}
