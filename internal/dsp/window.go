package dsp

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/window"
	"github.com/patrickmn/go-cache"
)

// WindowKind names a window function.
type WindowKind string

const (
	WindowHann        WindowKind = "hann"
	WindowHamming     WindowKind = "hamming"
	WindowRectangular WindowKind = "rectangular"
)

// windows caches generated windows; frame lengths only change with the
// sample rate, so a handful of entries are live at any time.
var windows = cache.New(cache.NoExpiration, 0)

// Window returns the n-point window of the given kind. The returned slice is
// shared and must not be modified.
func Window(kind WindowKind, n int) []float64 {
	key := fmt.Sprintf("%s:%d", kind, n)
	if w, ok := windows.Get(key); ok {
		return w.([]float64)
	}

	var w []float64
	switch kind {
	case WindowHamming:
		w = window.Hamming(n)
	case WindowRectangular:
		w = window.Rectangular(n)
	default:
		w = window.Hann(n)
	}
	windows.Set(key, w, cache.NoExpiration)
	return w
}

// GaussianWindow returns the n-point Gaussian window with shape alpha
// (the inverse of the standard deviation in half-widths). The returned slice
// is shared and must not be modified.
func GaussianWindow(n int, alpha float64) []float64 {
	key := fmt.Sprintf("gaussian:%g:%d", alpha, n)
	if w, ok := windows.Get(key); ok {
		return w.([]float64)
	}

	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
	}
	half := float64(n-1) / 2
	for i := range w {
		if half == 0 {
			break
		}
		x := alpha * (float64(i) - half) / half
		w[i] = math.Exp(-0.5 * x * x)
	}
	windows.Set(key, w, cache.NoExpiration)
	return w
}

// ApplyWindow multiplies x by w element-wise. Extra samples of the longer
// slice are left untouched.
func ApplyWindow(x, w []float64) {
	for i := range min(len(x), len(w)) {
		x[i] *= w[i]
	}
}
