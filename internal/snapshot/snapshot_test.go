package snapshot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/speechscope/internal/conf"
	"github.com/tphakala/speechscope/internal/datastore"
	"github.com/tphakala/speechscope/internal/dsp"
	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/timetrack"
)

func testView() conf.ViewSettings {
	return conf.ViewSettings{
		MinFrequency:   0,
		MaxFrequency:   4000,
		FFTSize:        16,
		MinGain:        -60,
		MaxGain:        0,
		FrequencyScale: "linear",
		FormantCount:   2,
	}
}

func newStore(t *testing.T) *datastore.DataStore {
	t.Helper()
	store, err := datastore.New(2)
	require.NoError(t, err)
	return store
}

func ptr(v float64) *float64 { return &v }

func TestBuildSelectsWindow(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	store.Update(func(w *datastore.WriteTxn) {
		for i := range 10 {
			at := float64(i)
			v := timetrack.Some(100 + at)
			if i%2 == 1 {
				v = timetrack.None[float64]()
			}
			w.Pitch().Insert(at, v)
			w.Formant(0).Insert(at, timetrack.Some(500.0))
		}
		w.SetTime(9)
	})

	snap, err := Build(store, testView(), Request{Duration: 3}, 8000)
	require.NoError(t, err)

	assert.Equal(t, store.SessionID().String(), snap.SessionID)
	assert.InDelta(t, 9.0, snap.Time, 0)
	assert.InDelta(t, 6.0, snap.From, 0)
	require.Len(t, snap.Pitch, 4, "window includes both ends")
	assert.InDelta(t, 6.0, snap.Pitch[0].Time, 0)
	require.NotNil(t, snap.Pitch[0].Value)
	assert.InDelta(t, 106.0, *snap.Pitch[0].Value, 0)
	assert.Nil(t, snap.Pitch[1].Value)

	require.Len(t, snap.Formants, 2)
	assert.Len(t, snap.Formants[0], 4)
	assert.Empty(t, snap.Formants[1])
	assert.Nil(t, snap.Oscilloscope)

	snap, err = Build(store, testView(), Request{Since: ptr(2), Duration: 2}, 8000)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, snap.To, 0)
	assert.Len(t, snap.Pitch, 3)
}

func TestBuildValidatesRequest(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	for _, req := range []Request{
		{Duration: -1},
		{Duration: MaxDuration + 1},
		{Rows: 1},
		{Rows: MaxRows + 1},
		{Since: ptr(math.NaN())},
	} {
		_, err := Build(store, testView(), req, 8000)
		require.ErrorIs(t, err, ErrInvalidRequest, "%+v", req)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	}

	view := testView()
	view.FrequencyScale = "bark"
	_, err := Build(store, view, Request{}, 8000)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestMapColumn(t *testing.T) {
	t.Parallel()

	// 9 bins at 8 kHz: bin i is i*500 Hz
	frame := datastore.SpectrogramFrame{
		Magnitudes: []float64{0, 0.001, 0.01, 0.1, 1, 0.1, 0, 0, 0},
		SampleRate: 8000,
	}

	col := MapColumn(frame, dsp.ScaleLinear, 0, 4000, -60, 0, 9)
	require.Len(t, col, 9)
	assert.InDelta(t, 0.0, col[0], 1e-12, "silence clamps to the floor")
	assert.InDelta(t, 0.0, col[1], 1e-12, "-60 dB is the floor")
	assert.InDelta(t, 1.0/3, col[2], 1e-9)
	assert.InDelta(t, 2.0/3, col[3], 1e-9)
	assert.InDelta(t, 1.0, col[4], 1e-12)

	// interpolation between bins 3 and 4
	col = MapColumn(frame, dsp.ScaleLinear, 1750, 1750, -60, 0, 2)
	assert.InDelta(t, 20*math.Log10(0.55)/60+1, col[0], 1e-9)

	// above Nyquist stays empty
	col = MapColumn(frame, dsp.ScaleLinear, 5000, 6000, -60, 0, 4)
	assert.Equal(t, []float64{0, 0, 0, 0}, col)
}

func TestMapColumnMelSpacing(t *testing.T) {
	t.Parallel()

	mags := make([]float64, 513)
	for i := range mags {
		mags[i] = 1
	}
	frame := datastore.SpectrogramFrame{Magnitudes: mags, SampleRate: 8000}
	col := MapColumn(frame, dsp.ScaleMel, 60, 4000, -60, 0, 64)
	for i, v := range col {
		assert.InDelta(t, 1.0, v, 1e-12, "row %d", i)
	}
}

func TestSpectrogramInSnapshot(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	store.Update(func(w *datastore.WriteTxn) {
		for i := range 4 {
			w.Spectrogram().Insert(float64(i)*0.0125, datastore.SpectrogramFrame{
				Magnitudes:    []float64{1, 1, 1, 1, 1, 1, 1, 1, 1},
				SampleRate:    8000,
				FrameDuration: 0.05,
			})
		}
		w.SetTime(0.05)
	})

	snap, err := Build(store, testView(), Request{Rows: 16}, 8000)
	require.NoError(t, err)
	require.Len(t, snap.Spectrogram.Columns, 4)
	assert.Equal(t, "linear", snap.Spectrogram.Scale)
	assert.Equal(t, 16, snap.Spectrogram.Rows)
	assert.Len(t, snap.Spectrogram.Columns[0].Values, 16)
	assert.InDelta(t, 0.05, snap.Spectrogram.Columns[0].Duration, 0)
}

func square(period, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if (i % period) < period/2 {
			out[i] = 2
		} else {
			out[i] = -2
		}
	}
	return out
}

func TestPeriodWindow(t *testing.T) {
	t.Parallel()

	// down crossings at 5, 15, 25, ... 95
	x := square(10, 103)
	start, end, periods := PeriodWindow(x, 5)
	assert.Equal(t, 95, end)
	assert.Equal(t, 45, start)
	assert.Equal(t, 5, periods)

	start, end, periods = PeriodWindow(square(10, 23), 5)
	assert.Equal(t, 15, end)
	assert.Equal(t, 5, start)
	assert.Equal(t, 1, periods)

	start, end, periods = PeriodWindow([]float64{1, 2, 3}, 5)
	assert.Equal(t, 0, start)
	assert.Equal(t, 2, end)
	assert.Zero(t, periods)

	start, end, periods = PeriodWindow(nil, 5)
	assert.Zero(t, start)
	assert.Zero(t, end)
	assert.Zero(t, periods)
}

func TestOscilloscopeNormalisedAndWindowed(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	glottal := square(10, 103)
	store.Update(func(w *datastore.WriteTxn) {
		w.Sound().Insert(1, []float64{0, 0.5, -4, 2})
		w.Glottal().Insert(1, glottal)
	})

	snap, err := Build(store, testView(), Request{}, 8000)
	require.NoError(t, err)
	osc := snap.Oscilloscope
	require.NotNil(t, osc)

	assert.Equal(t, []float64{0, 0.125, -1, 0.5}, osc.Sound)
	assert.Len(t, osc.Glottal, 51)
	assert.InDelta(t, -1.0, osc.Glottal[0], 0)
	assert.InDelta(t, 45*1000/8000.0, osc.WindowStart, 1e-12)
	assert.InDelta(t, 95*1000/8000.0, osc.WindowEnd, 1e-12)
	assert.Equal(t, 5, osc.Periods)
	assert.InDelta(t, -2.0, glottal[45], 0, "stored track is not modified")
}
