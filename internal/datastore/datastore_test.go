package datastore

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/speechscope/internal/timetrack"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewValidatesFormantCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		count   int
		wantErr bool
	}{
		{"zero", 0, true},
		{"one", 1, false},
		{"default", DefaultFormantTracks, false},
		{"max", MaxFormantTracks, false},
		{"too many", MaxFormantTracks + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ds, err := New(tt.count)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, ds)
				return
			}
			require.NoError(t, err)
			ds.View(func(r *ReadTxn) {
				assert.Equal(t, tt.count, r.FormantCount())
			})
		})
	}
}

func TestWriteIsVisibleToNextRead(t *testing.T) {
	t.Parallel()

	ds, err := New(2)
	require.NoError(t, err)

	ds.Update(func(w *WriteTxn) {
		w.SetTime(0.5)
		w.Pitch().Insert(0.46, timetrack.Some(200.0))
		w.Formant(0).Insert(0.48, timetrack.Some(700.0))
		w.Formant(1).Insert(0.48, timetrack.None[float64]())
		w.Spectrogram().Insert(0.45, SpectrogramFrame{Magnitudes: []float64{1, 0.5}, SampleRate: 8000, FrameDuration: 0.05})
		w.Sound().Insert(0.5, []float64{0, 1})
		w.Glottal().Insert(0.5, []float64{1, 0})
	})

	r := ds.BeginRead()
	defer r.End()

	assert.InDelta(t, 0.5, r.Time(), 1e-12)

	ts, f0, ok := r.Pitch().Last()
	require.True(t, ok)
	assert.InDelta(t, 0.46, ts, 1e-12)
	assert.InDelta(t, 200.0, f0.OrElse(0), 1e-12)

	_, f1, ok := r.Formant(0).Last()
	require.True(t, ok)
	assert.True(t, f1.IsSome())
	_, f2, ok := r.Formant(1).Last()
	require.True(t, ok)
	assert.False(t, f2.IsSome())

	_, frame, ok := r.Spectrogram().Last()
	require.True(t, ok)
	assert.Len(t, frame.Magnitudes, 2)
	assert.Equal(t, 1, r.Sound().Len())
	assert.Equal(t, 1, r.Glottal().Len())
}

func TestGuardUseAfterEndPanics(t *testing.T) {
	t.Parallel()

	ds, err := New(DefaultFormantTracks)
	require.NoError(t, err)

	w := ds.BeginWrite()
	w.End()
	w.End() // idempotent
	assert.Panics(t, func() { w.Pitch() })
	assert.Panics(t, func() { w.SetTime(1) })

	r := ds.BeginRead()
	r.End()
	assert.Panics(t, func() { r.Spectrogram() })
	assert.Panics(t, func() { _ = r.Time() })

	// the lock was released exactly once per guard
	ds.Update(func(w *WriteTxn) { w.SetTime(2) })
}

func TestReadersSeeConsistentFormantFrontier(t *testing.T) {
	t.Parallel()

	const (
		tracks = 4
		frames = 500
	)
	ds, err := New(tracks)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Go(func() {
		for i := range frames {
			ts := float64(i) * 0.02
			ds.Update(func(w *WriteTxn) {
				for k := range w.FormantCount() {
					w.Formant(k).Insert(ts, timetrack.Some(float64(500*(k+1))))
				}
				w.SetTime(ts)
			})
		}
	})

	for range 4 {
		wg.Go(func() {
			for range frames {
				ds.View(func(r *ReadTxn) {
					first := r.Formant(0).Len()
					for k := 1; k < r.FormantCount(); k++ {
						if r.Formant(k).Len() != first {
							t.Errorf("formant %d has %d entries, formant 0 has %d", k, r.Formant(k).Len(), first)
						}
					}
				})
			}
		})
	}
	wg.Wait()

	assert.Equal(t, uint64(frames), ds.WriteCount())
}

func TestCatchupCount(t *testing.T) {
	t.Parallel()

	ds, err := New(1)
	require.NoError(t, err)

	ds.View(func(*ReadTxn) {})
	assert.Equal(t, uint64(0), ds.CatchupCount(), "first read is never a catch-up")

	ds.View(func(*ReadTxn) {})
	assert.Equal(t, uint64(1), ds.CatchupCount())

	ds.Update(func(w *WriteTxn) { w.SetTime(1) })
	ds.View(func(*ReadTxn) {})
	assert.Equal(t, uint64(1), ds.CatchupCount())

	r1 := ds.BeginRead()
	r1.End()
	r2 := ds.BeginRead()
	r2.End()
	assert.Greater(t, r2.Epoch(), r1.Epoch())
	assert.Equal(t, uint64(3), ds.CatchupCount(), "both reads saw time 1 again")
}

func TestSetFormantCountAndTrim(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	ds, err := New(2, WithSessionID(id))
	require.NoError(t, err)
	assert.Equal(t, id, ds.SessionID())

	ds.Update(func(w *WriteTxn) {
		for i := range 10 {
			ts := float64(i)
			w.Pitch().Insert(ts, timetrack.None[float64]())
			w.Formant(0).Insert(ts, timetrack.Some(600.0))
			w.Formant(1).Insert(ts, timetrack.Some(1200.0))
		}

		require.Error(t, w.SetFormantCount(0))
		require.NoError(t, w.SetFormantCount(3))
		assert.Equal(t, 3, w.FormantCount())
		assert.Equal(t, 0, w.Formant(2).Len())

		removed := w.TrimBefore(5)
		assert.Equal(t, 15, removed)

		require.NoError(t, w.SetFormantCount(1))
	})

	ds.View(func(r *ReadTxn) {
		assert.Equal(t, 1, r.FormantCount())
		assert.Equal(t, 5, r.Pitch().Len())
		assert.Equal(t, 5, r.Formant(0).Len())
	})
}
