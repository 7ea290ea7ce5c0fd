package pipeline

import (
	"github.com/tphakala/speechscope/internal/datastore"
	"github.com/tphakala/speechscope/internal/timetrack"
)

const pitchFrame = 0.040 // seconds

// pitchAnalyser runs the pitch solver on capture-rate frames.
type pitchAnalyser struct {
	p   *Pipeline
	buf []float64
}

func newPitchAnalyser(p *Pipeline) *pitchAnalyser {
	return &pitchAnalyser{p: p}
}

func (a *pitchAnalyser) name() string { return StreamPitch }

func (a *pitchAnalyser) frameLength(rate float64) int {
	return frameSamples(pitchFrame, rate)
}

func (a *pitchAnalyser) analyse(frame []float32, rate, t float64) error {
	a.buf = toFloat64(a.buf, frame)

	res, err := a.p.solvers.Pitch.Solve(a.buf, rate)
	if err != nil {
		return err
	}

	value := timetrack.None[float64]()
	if res.Voiced {
		value = timetrack.Some(res.Frequency)
	}
	a.p.store.Update(func(w *datastore.WriteTxn) {
		w.Pitch().Insert(t, value)
	})
	return nil
}

func toFloat64(dst []float64, src []float32) []float64 {
	if cap(dst) < len(src) {
		dst = make([]float64, len(src))
	}
	dst = dst[:len(src)]
	for i, s := range src {
		dst[i] = float64(s)
	}
	return dst
}
