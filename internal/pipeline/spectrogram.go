package pipeline

import (
	"github.com/tphakala/speechscope/internal/audiocore/resample"
	"github.com/tphakala/speechscope/internal/datastore"
	"github.com/tphakala/speechscope/internal/dsp"
)

const (
	spectrogramHop      = 0.0125 // seconds
	spectrogramWindow   = 0.050  // seconds
	spectrogramHighPass = 60.0   // Hz
	spectrogramHPOrder  = 8
)

// spectrogramAnalyser produces one peak-hold normalised magnitude spectrum per
// hop over a sliding window of the band-limited signal.
type spectrogramAnalyser struct {
	p        *Pipeline
	rs       *resample.Resampler
	hp       dsp.Cascade
	window   *dsp.SlidingWindow
	peak     *dsp.PeakHold
	gen      uint64
	windowed []float64
}

func newSpectrogramAnalyser(p *Pipeline, rate float64) (*spectrogramAnalyser, error) {
	outRate := 2 * float64(p.cfg.ViewMaxFrequency())
	rs, err := resample.New(rate, outRate, resample.WithQuality(p.resampleQuality))
	if err != nil {
		return nil, err
	}
	a := &spectrogramAnalyser{
		p:    p,
		rs:   rs,
		peak: dsp.NewPeakHold(dsp.DefaultPeakHoldDecay),
	}
	if err := a.rebuild(outRate); err != nil {
		return nil, err
	}
	a.gen = rs.Generation()
	return a, nil
}

// rebuild redesigns the rate dependent stages for a new output rate.
func (a *spectrogramAnalyser) rebuild(outRate float64) error {
	hp, err := dsp.NewButterworthHighPass(outRate, spectrogramHighPass, spectrogramHPOrder)
	if err != nil {
		return err
	}
	a.hp = hp

	n := frameSamples(spectrogramWindow, outRate)
	if a.window == nil {
		a.window = dsp.NewSlidingWindow(n)
	} else {
		a.window.Resize(n)
	}
	return nil
}

func (a *spectrogramAnalyser) name() string { return StreamSpectrogram }

func (a *spectrogramAnalyser) frameLength(rate float64) int {
	return frameSamples(spectrogramHop, rate)
}

func (a *spectrogramAnalyser) analyse(frame []float32, rate, t float64) error {
	// the view range may change at runtime; SetRate is a no-op otherwise
	outRate := 2 * float64(a.p.cfg.ViewMaxFrequency())
	if err := a.rs.SetRate(rate, outRate); err != nil {
		return err
	}
	if gen := a.rs.Generation(); gen != a.gen {
		if err := a.rebuild(outRate); err != nil {
			return err
		}
		a.gen = gen
	}

	out, err := a.rs.Process(frame)
	if err != nil {
		return err
	}
	a.hp.ApplyBatch(out)

	win := a.window.Push(out)
	a.windowed = append(a.windowed[:0], win...)
	dsp.ApplyWindow(a.windowed, dsp.Window(dsp.WindowHann, len(a.windowed)))

	mags := dsp.MagnitudeSpectrum(a.windowed, a.p.cfg.FFTSize())
	a.peak.Normalize(mags)

	frameDuration := float64(len(win)) / outRate
	at := t - frameDuration - a.rs.GetDelay()/outRate

	var before, after uint64
	a.p.store.Update(func(w *datastore.WriteTxn) {
		tr := w.Spectrogram()
		before = tr.Discarded()
		tr.Insert(at, datastore.SpectrogramFrame{
			Magnitudes:    mags,
			SampleRate:    outRate,
			FrameDuration: frameDuration,
		})
		after = tr.Discarded()
	})
	a.p.noteRewind(a.name(), before, after)
	return nil
}
