package dsp

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// MagnitudeSpectrum returns the fftSize/2+1 magnitude bins of frame, which is
// zero padded or truncated to fftSize.
func MagnitudeSpectrum(frame []float64, fftSize int) []float64 {
	padded := make([]float64, fftSize)
	copy(padded, frame)

	spec := fft.FFTReal(padded)
	mags := make([]float64, fftSize/2+1)
	for i := range mags {
		mags[i] = cmplx.Abs(spec[i])
	}
	return mags
}

// BinFrequency returns the centre frequency of bin i.
func BinFrequency(i, fftSize int, sampleRate float64) float64 {
	return float64(i) * sampleRate / float64(fftSize)
}

// PeakHold normalises successive spectra by a running peak estimate that
// follows increases instantly and decays slowly:
//
//	hold = max(frameMax, decay·hold + (1-decay)·frameMax)
type PeakHold struct {
	decay float64
	hold  float64
}

// DefaultPeakHoldDecay is the per-frame decay of the hold estimate.
const DefaultPeakHoldDecay = 0.995

// NewPeakHold returns a normaliser with the given decay, or the default when
// decay is outside (0, 1).
func NewPeakHold(decay float64) *PeakHold {
	if decay <= 0 || decay >= 1 {
		decay = DefaultPeakHoldDecay
	}
	return &PeakHold{decay: decay}
}

// Update folds frameMax into the estimate and returns the new hold value.
func (p *PeakHold) Update(frameMax float64) float64 {
	p.hold = math.Max(frameMax, p.decay*p.hold+(1-p.decay)*frameMax)
	return p.hold
}

// Hold returns the current estimate.
func (p *PeakHold) Hold() float64 {
	return p.hold
}

// Normalize updates the estimate with the spectrum maximum and divides the
// spectrum by it in place. An all-zero history leaves the spectrum untouched.
func (p *PeakHold) Normalize(spectrum []float64) {
	var frameMax float64
	for _, v := range spectrum {
		frameMax = math.Max(frameMax, v)
	}
	hold := p.Update(frameMax)
	if hold == 0 {
		return
	}
	inv := 1 / hold
	for i := range spectrum {
		spectrum[i] *= inv
	}
}

// SlidingWindow keeps the newest n samples of a stream in a FIFO shift register.
type SlidingWindow struct {
	buf []float64
}

// NewSlidingWindow returns a zero-filled window of n samples.
func NewSlidingWindow(n int) *SlidingWindow {
	return &SlidingWindow{buf: make([]float64, n)}
}

// Push shifts hop into the end of the window, discarding the oldest samples,
// and returns the window contents. The result is only valid until the next call.
func (w *SlidingWindow) Push(hop []float64) []float64 {
	n := len(w.buf)
	if len(hop) >= n {
		copy(w.buf, hop[len(hop)-n:])
		return w.buf
	}
	copy(w.buf, w.buf[len(hop):])
	copy(w.buf[n-len(hop):], hop)
	return w.buf
}

// Resize changes the window length, keeping the newest samples.
func (w *SlidingWindow) Resize(n int) {
	if n == len(w.buf) {
		return
	}
	next := make([]float64, n)
	if n <= len(w.buf) {
		copy(next, w.buf[len(w.buf)-n:])
	} else {
		copy(next[n-len(w.buf):], w.buf)
	}
	w.buf = next
}

// Len returns the window length.
func (w *SlidingWindow) Len() int {
	return len(w.buf)
}
