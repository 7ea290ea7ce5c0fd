// Package timetrack provides time-ordered series of analysis results.
//
// A TimeTrack has a single producer. Every insert lands after all existing
// entries, so iteration always observes strictly increasing timestamps. A
// producer that restarts its clock (for example after a sample rate change)
// overwrites the tail it has already written rather than breaking the order.
package timetrack

import (
	"iter"
	"math"
	"sort"
)

// Optional holds a value that may be absent, used for unvoiced or undefined samples.
type Optional[T any] struct {
	value T
	valid bool
}

// Some returns a present Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, valid: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.valid
}

// IsSome reports whether the value is present.
func (o Optional[T]) IsSome() bool {
	return o.valid
}

// OrElse returns the value, or def when absent.
func (o Optional[T]) OrElse(def T) T {
	if o.valid {
		return o.value
	}
	return def
}

// TimeTrack is an append-only, time-ordered series. It is not safe for
// concurrent use; the datastore guards every track with its transaction lock.
type TimeTrack[T any] struct {
	times  []float64
	values []T

	discarded uint64
}

// OptionalTimeTrack is a track whose samples may be absent.
type OptionalTimeTrack[T any] = TimeTrack[Optional[T]]

// New returns an empty track.
func New[T any]() *TimeTrack[T] {
	return &TimeTrack[T]{}
}

// Insert appends v at time t. Entries at or after t are discarded first so the
// track stays strictly increasing, and counted in Discarded. NaN timestamps
// are ignored.
func (tr *TimeTrack[T]) Insert(t float64, v T) {
	if math.IsNaN(t) {
		return
	}
	if n := len(tr.times); n > 0 && t <= tr.times[n-1] {
		i := sort.SearchFloat64s(tr.times, t)
		tr.discarded += uint64(n - i)
		clear(tr.values[i:])
		tr.times = tr.times[:i]
		tr.values = tr.values[:i]
	}
	tr.times = append(tr.times, t)
	tr.values = append(tr.values, v)
}

// Discarded returns how many entries out-of-order inserts have overwritten.
func (tr *TimeTrack[T]) Discarded() uint64 {
	return tr.discarded
}

// Len returns the number of entries.
func (tr *TimeTrack[T]) Len() int {
	return len(tr.times)
}

// At returns the i-th entry.
func (tr *TimeTrack[T]) At(i int) (float64, T) {
	return tr.times[i], tr.values[i]
}

// Last returns the newest entry, ok is false when the track is empty.
func (tr *TimeTrack[T]) Last() (t float64, v T, ok bool) {
	n := len(tr.times)
	if n == 0 {
		return 0, v, false
	}
	return tr.times[n-1], tr.values[n-1], true
}

// Nearest returns the index of the entry whose time is closest to t.
// Ties resolve to the earlier entry.
func (tr *TimeTrack[T]) Nearest(t float64) (int, bool) {
	n := len(tr.times)
	if n == 0 {
		return 0, false
	}
	i := sort.SearchFloat64s(tr.times, t)
	switch {
	case i == 0:
		return 0, true
	case i == n:
		return n - 1, true
	case t-tr.times[i-1] <= tr.times[i]-t:
		return i - 1, true
	default:
		return i, true
	}
}

// Index returns the index of the first entry with time >= t (Len() if none).
func (tr *TimeTrack[T]) Index(t float64) int {
	return sort.SearchFloat64s(tr.times, t)
}

// All iterates over every entry in time order.
func (tr *TimeTrack[T]) All() iter.Seq2[float64, T] {
	return func(yield func(float64, T) bool) {
		for i := range tr.times {
			if !yield(tr.times[i], tr.values[i]) {
				return
			}
		}
	}
}

// Range iterates over entries with from <= time < to.
func (tr *TimeTrack[T]) Range(from, to float64) iter.Seq2[float64, T] {
	return func(yield func(float64, T) bool) {
		for i := tr.Index(from); i < len(tr.times) && tr.times[i] < to; i++ {
			if !yield(tr.times[i], tr.values[i]) {
				return
			}
		}
	}
}

// Times returns a copy of the timestamps.
func (tr *TimeTrack[T]) Times() []float64 {
	out := make([]float64, len(tr.times))
	copy(out, tr.times)
	return out
}

// TrimBefore drops every entry older than t and returns how many were removed.
// The remaining entries keep their order.
func (tr *TimeTrack[T]) TrimBefore(t float64) int {
	i := sort.SearchFloat64s(tr.times, t)
	if i == 0 {
		return 0
	}
	n := copy(tr.times, tr.times[i:])
	copy(tr.values, tr.values[i:])
	clear(tr.values[n:])
	tr.times = tr.times[:n]
	tr.values = tr.values[:n]
	return i
}

// Clear removes every entry.
func (tr *TimeTrack[T]) Clear() {
	clear(tr.values)
	tr.times = tr.times[:0]
	tr.values = tr.values[:0]
}

// View is a read-only handle on a track.
type View[T any] struct {
	tr *TimeTrack[T]
}

// ViewOf wraps tr in a read-only View.
func ViewOf[T any](tr *TimeTrack[T]) View[T] {
	return View[T]{tr: tr}
}

func (v View[T]) Len() int                                     { return v.tr.Len() }
func (v View[T]) At(i int) (float64, T)                        { return v.tr.At(i) }
func (v View[T]) Last() (float64, T, bool)                     { return v.tr.Last() }
func (v View[T]) Nearest(t float64) (int, bool)                { return v.tr.Nearest(t) }
func (v View[T]) Index(t float64) int                          { return v.tr.Index(t) }
func (v View[T]) All() iter.Seq2[float64, T]                   { return v.tr.All() }
func (v View[T]) Range(from, to float64) iter.Seq2[float64, T] { return v.tr.Range(from, to) }
func (v View[T]) Times() []float64                             { return v.tr.Times() }
func (v View[T]) Discarded() uint64                            { return v.tr.Discarded() }
