package dsp

import (
	"fmt"
	"math"
)

// Biquad is a second order IIR section using the RBJ audio EQ cookbook
// coefficients, normalised by a0.
type Biquad struct {
	b0, b1, b2, a1, a2 float64

	in1, in2, out1, out2 float64
}

// NewHighPass returns an RBJ high-pass biquad.
func NewHighPass(sampleRate, frequency, q float64) (*Biquad, error) {
	if err := checkFilterParams(sampleRate, frequency, q); err != nil {
		return nil, err
	}
	w0 := 2 * math.Pi * frequency / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	a0 := 1 + alpha
	return &Biquad{
		b0: (1 + cosw0) / 2 / a0,
		b1: -(1 + cosw0) / a0,
		b2: (1 + cosw0) / 2 / a0,
		a1: -2 * cosw0 / a0,
		a2: (1 - alpha) / a0,
	}, nil
}

// NewLowPass returns an RBJ low-pass biquad.
func NewLowPass(sampleRate, frequency, q float64) (*Biquad, error) {
	if err := checkFilterParams(sampleRate, frequency, q); err != nil {
		return nil, err
	}
	w0 := 2 * math.Pi * frequency / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	a0 := 1 + alpha
	return &Biquad{
		b0: (1 - cosw0) / 2 / a0,
		b1: (1 - cosw0) / a0,
		b2: (1 - cosw0) / 2 / a0,
		a1: -2 * cosw0 / a0,
		a2: (1 - alpha) / a0,
	}, nil
}

func checkFilterParams(sampleRate, frequency, q float64) error {
	switch {
	case sampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %g", sampleRate)
	case frequency <= 0 || frequency >= sampleRate/2:
		return fmt.Errorf("cutoff %g Hz outside (0, %g)", frequency, sampleRate/2)
	case q <= 0:
		return fmt.Errorf("q must be positive, got %g", q)
	}
	return nil
}

// Process filters one sample.
func (f *Biquad) Process(x float64) float64 {
	y := f.b0*x + f.b1*f.in1 + f.b2*f.in2 - f.a1*f.out1 - f.a2*f.out2
	f.in2, f.in1 = f.in1, x
	f.out2, f.out1 = f.out1, y
	return y
}

// ApplyBatch filters samples in place.
func (f *Biquad) ApplyBatch(samples []float64) {
	for i, x := range samples {
		samples[i] = f.Process(x)
	}
}

// Reset clears the filter history.
func (f *Biquad) Reset() {
	f.in1, f.in2, f.out1, f.out2 = 0, 0, 0, 0
}

// Cascade runs biquad sections in series.
type Cascade []*Biquad

// NewButterworthHighPass builds an even-order Butterworth high-pass as a
// cascade of order/2 biquads, each with the Q of one conjugate pole pair.
func NewButterworthHighPass(sampleRate, frequency float64, order int) (Cascade, error) {
	if order < 2 || order%2 != 0 {
		return nil, fmt.Errorf("butterworth order must be even and >= 2, got %d", order)
	}
	sections := make(Cascade, 0, order/2)
	for k := 1; k <= order/2; k++ {
		q := 1 / (2 * math.Cos(float64(2*k-1)*math.Pi/float64(2*order)))
		s, err := NewHighPass(sampleRate, frequency, q)
		if err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, nil
}

// ApplyBatch filters samples in place through every section.
func (c Cascade) ApplyBatch(samples []float64) {
	for _, s := range c {
		s.ApplyBatch(samples)
	}
}

// Reset clears the history of every section.
func (c Cascade) Reset() {
	for _, s := range c {
		s.Reset()
	}
}
