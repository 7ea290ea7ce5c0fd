package datastore

import (
	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/timetrack"
)

// WriteTxn is an exclusive transaction guard. It is not safe for use by more
// than one goroutine.
type WriteTxn struct {
	ds    *DataStore
	ended bool
}

// End releases the lock. Calling End twice is a no-op.
func (w *WriteTxn) End() {
	if w.ended {
		return
	}
	w.ended = true
	w.ds.writes.Add(1)
	w.ds.mu.Unlock()
}

func (w *WriteTxn) check() *DataStore {
	if w.ended {
		panic(ErrTxnEnded)
	}
	return w.ds
}

// Time returns the current capture-relative time.
func (w *WriteTxn) Time() float64 { return w.check().time }

// SetTime sets the current capture-relative time.
func (w *WriteTxn) SetTime(t float64) { w.check().time = t }

// Spectrogram returns the mutable spectrogram track.
func (w *WriteTxn) Spectrogram() *timetrack.TimeTrack[SpectrogramFrame] {
	return w.check().spectrogram
}

// Pitch returns the mutable pitch track.
func (w *WriteTxn) Pitch() *timetrack.OptionalTimeTrack[float64] {
	return w.check().pitch
}

// FormantCount returns the number of formant tracks.
func (w *WriteTxn) FormantCount() int {
	return len(w.check().formants)
}

// Formant returns the i-th formant track. It panics when i is out of range.
func (w *WriteTxn) Formant(i int) *timetrack.OptionalTimeTrack[float64] {
	return w.check().formants[i]
}

// SetFormantCount resizes the formant tracks; new tracks start empty.
func (w *WriteTxn) SetFormantCount(n int) error {
	ds := w.check()
	if n < 1 || n > MaxFormantTracks {
		return errors.Newf("formant track count %d out of range [1, %d]", n, MaxFormantTracks).
			Component(ComponentDataStore).
			Category(errors.CategoryValidation).
			Build()
	}
	ds.resizeFormants(n)
	return nil
}

// Sound returns the mutable time-domain sound track.
func (w *WriteTxn) Sound() *timetrack.TimeTrack[[]float64] {
	return w.check().sound
}

// Glottal returns the mutable inverse glottal source track.
func (w *WriteTxn) Glottal() *timetrack.TimeTrack[[]float64] {
	return w.check().glottal
}

// TrimBefore drops history older than t from every track.
func (w *WriteTxn) TrimBefore(t float64) int {
	ds := w.check()
	n := ds.spectrogram.TrimBefore(t)
	n += ds.pitch.TrimBefore(t)
	for _, f := range ds.formants {
		n += f.TrimBefore(t)
	}
	n += ds.sound.TrimBefore(t)
	n += ds.glottal.TrimBefore(t)
	return n
}

// ReadTxn is a shared transaction guard. It is not safe for use by more than
// one goroutine.
type ReadTxn struct {
	ds    *DataStore
	epoch uint64
	ended bool
}

// End releases the shared lock. Calling End twice is a no-op.
func (r *ReadTxn) End() {
	if r.ended {
		return
	}
	r.ended = true
	r.ds.mu.RUnlock()
}

func (r *ReadTxn) check() *DataStore {
	if r.ended {
		panic(ErrTxnEnded)
	}
	return r.ds
}

// Epoch is the sequence number of this read.
func (r *ReadTxn) Epoch() uint64 { return r.epoch }

// Time returns the current capture-relative time.
func (r *ReadTxn) Time() float64 { return r.check().time }

func (r *ReadTxn) Spectrogram() timetrack.View[SpectrogramFrame] {
	return timetrack.ViewOf(r.check().spectrogram)
}

func (r *ReadTxn) Pitch() timetrack.View[timetrack.Optional[float64]] {
	return timetrack.ViewOf(r.check().pitch)
}

func (r *ReadTxn) FormantCount() int {
	return len(r.check().formants)
}

// Formant returns a view of the i-th formant track. It panics when i is out of range.
func (r *ReadTxn) Formant(i int) timetrack.View[timetrack.Optional[float64]] {
	return timetrack.ViewOf(r.check().formants[i])
}

func (r *ReadTxn) Sound() timetrack.View[[]float64] {
	return timetrack.ViewOf(r.check().sound)
}

func (r *ReadTxn) Glottal() timetrack.View[[]float64] {
	return timetrack.ViewOf(r.check().glottal)
}
