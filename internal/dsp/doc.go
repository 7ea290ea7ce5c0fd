// Package dsp holds the signal processing building blocks shared by the
// analysis workers: filters, windows, spectra, normalisers, frequency scales
// and timing helpers.
//
// Everything here operates on float64 slices and is safe for use by one
// goroutine at a time unless stated otherwise.
package dsp
