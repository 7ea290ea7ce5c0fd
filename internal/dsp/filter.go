package dsp

import "math"

// PreEmphasisCoefficient returns exp(-2π·frequency/sampleRate).
func PreEmphasisCoefficient(frequency, sampleRate float64) float64 {
	return math.Exp(-2 * math.Pi * frequency / sampleRate)
}

// PreEmphasis applies y[i] = x[i] - k·x[i-1] in place. It runs from the end
// of the frame so every term reads an unmodified predecessor.
func PreEmphasis(x []float64, k float64) {
	for i := len(x) - 1; i >= 1; i-- {
		x[i] -= k * x[i-1]
	}
}

// AbsMax returns the largest absolute value in x.
func AbsMax(x []float64) float64 {
	var m float64
	for _, v := range x {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// Normalize divides x by its absolute maximum in place. Silent input is left as is.
func Normalize(x []float64) {
	m := AbsMax(x)
	if m == 0 {
		return
	}
	inv := 1 / m
	for i := range x {
		x[i] *= inv
	}
}

// RMS returns the root mean square of x.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}
