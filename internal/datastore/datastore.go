// Package datastore holds every analysis track of a session behind a single
// reader/writer lock.
//
// Tracks are reachable only through transaction guards:
//
//	txn := store.BeginWrite()
//	txn.Pitch().Insert(t, timetrack.Some(f0))
//	txn.End()
//
//	store.View(func(r *datastore.ReadTxn) {
//	    pitch := r.Pitch()
//	    ...
//	})
//
// A guard must not be used after End; doing so panics with ErrTxnEnded. Views
// and tracks obtained from a guard are only valid while it is held.
package datastore

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/timetrack"
)

const (
	// DefaultFormantTracks is the formant track count when none is configured.
	DefaultFormantTracks = 4
	// MaxFormantTracks bounds the formant track count.
	MaxFormantTracks = 8
)

// SpectrogramFrame is one normalised magnitude spectrum.
type SpectrogramFrame struct {
	Magnitudes    []float64
	SampleRate    float64 // rate of the signal the spectrum was computed from
	FrameDuration float64 // seconds of audio covered by the analysis window
}

// DataStore aggregates the tracks of one analysis session.
type DataStore struct {
	mu sync.RWMutex

	sessionID uuid.UUID

	time        float64
	spectrogram *timetrack.TimeTrack[SpectrogramFrame]
	pitch       *timetrack.OptionalTimeTrack[float64]
	formants    []*timetrack.OptionalTimeTrack[float64]
	sound       *timetrack.TimeTrack[[]float64]
	glottal     *timetrack.TimeTrack[[]float64]

	readMu       sync.Mutex
	lastReadTime float64
	hasRead      bool
	catchup      atomic.Uint64
	readEpoch    atomic.Uint64
	writes       atomic.Uint64
}

// Option configures a DataStore.
type Option func(*DataStore)

// WithSessionID sets the session id instead of generating one.
func WithSessionID(id uuid.UUID) Option {
	return func(ds *DataStore) { ds.sessionID = id }
}

// New creates an empty store with formantCount formant tracks.
func New(formantCount int, opts ...Option) (*DataStore, error) {
	if formantCount < 1 || formantCount > MaxFormantTracks {
		return nil, errors.Newf("formant track count %d out of range [1, %d]", formantCount, MaxFormantTracks).
			Component(ComponentDataStore).
			Category(errors.CategoryValidation).
			Build()
	}

	ds := &DataStore{
		sessionID:   uuid.New(),
		spectrogram: timetrack.New[SpectrogramFrame](),
		pitch:       timetrack.New[timetrack.Optional[float64]](),
		sound:       timetrack.New[[]float64](),
		glottal:     timetrack.New[[]float64](),
	}
	ds.resizeFormants(formantCount)

	for _, opt := range opts {
		opt(ds)
	}
	return ds, nil
}

// SessionID identifies the analysis session.
func (ds *DataStore) SessionID() uuid.UUID {
	return ds.sessionID
}

// CatchupCount is the number of reads that observed an unchanged current time,
// a sign that the reader polls faster than producers write.
func (ds *DataStore) CatchupCount() uint64 {
	return ds.catchup.Load()
}

// WriteCount is the number of completed write transactions.
func (ds *DataStore) WriteCount() uint64 {
	return ds.writes.Load()
}

// BeginWrite acquires the exclusive lock. The caller must End the returned guard.
func (ds *DataStore) BeginWrite() *WriteTxn {
	ds.mu.Lock()
	return &WriteTxn{ds: ds}
}

// BeginRead acquires a shared lock. The caller must End the returned guard.
func (ds *DataStore) BeginRead() *ReadTxn {
	ds.mu.RLock()

	epoch := ds.readEpoch.Add(1)

	ds.readMu.Lock()
	if ds.hasRead && ds.time == ds.lastReadTime {
		ds.catchup.Add(1)
	}
	ds.lastReadTime = ds.time
	ds.hasRead = true
	ds.readMu.Unlock()

	return &ReadTxn{ds: ds, epoch: epoch}
}

// Update runs fn inside a write transaction.
func (ds *DataStore) Update(fn func(*WriteTxn)) {
	txn := ds.BeginWrite()
	defer txn.End()
	fn(txn)
}

// View runs fn inside a read transaction.
func (ds *DataStore) View(fn func(*ReadTxn)) {
	txn := ds.BeginRead()
	defer txn.End()
	fn(txn)
}

func (ds *DataStore) resizeFormants(n int) {
	if n < len(ds.formants) {
		clear(ds.formants[n:])
		ds.formants = ds.formants[:n]
		return
	}
	for len(ds.formants) < n {
		ds.formants = append(ds.formants, timetrack.New[timetrack.Optional[float64]]())
	}
}
