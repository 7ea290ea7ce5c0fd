package pipeline

import (
	"context"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/speechscope/internal/audiocore/capture"
	"github.com/tphakala/speechscope/internal/audiocore/resample"
	"github.com/tphakala/speechscope/internal/datastore"
	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/observability/metrics"
	"github.com/tphakala/speechscope/internal/solver"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testProvider struct {
	fftSize  int
	viewMax  int
	formants int
	lpOrder  int
}

func (p testProvider) FFTSize() int          { return p.fftSize }
func (p testProvider) ViewMaxFrequency() int { return p.viewMax }
func (p testProvider) FormantCount() int     { return p.formants }
func (p testProvider) LPOrder() int          { return p.lpOrder }

func defaultProvider() testProvider {
	return testProvider{fftSize: 1024, viewMax: 4000, formants: 4, lpOrder: 10}
}

func defaultSolvers(t *testing.T) Solvers {
	t.Helper()
	set, err := solver.DefaultRegistry().NewSet(solver.Selection{})
	require.NoError(t, err)
	return set
}

func sine(freq, rate float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	return out
}

// fixture is a pipeline fed from a finished capture buffer.
type fixture struct {
	p     *Pipeline
	store *datastore.DataStore
	src   *capture.Buffer
}

func newFixture(t *testing.T, samples []float32, rate float64, solvers Solvers, opts ...Option) *fixture {
	t.Helper()

	src := capture.NewBuffer(len(samples)+1, rate)
	src.Write(samples)
	src.Finish()

	store, err := datastore.New(4)
	require.NoError(t, err)

	opts = append([]Option{WithBufferCapacity(len(samples) + 1)}, opts...)
	p, err := New(src, store, defaultProvider(), solvers, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = p.Close()
		src.Close()
	})
	return &fixture{p: p, store: store, src: src}
}

// runToEnd ticks until the source is exhausted and the workers have
// consumed every complete frame.
func (f *fixture) runToEnd(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for {
		err := f.p.ProcessAll(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
	}
	require.Eventually(t, f.p.Drained, 10*time.Second, 5*time.Millisecond)
}

func TestPipelineTracksSinePitch(t *testing.T) {
	t.Parallel()

	const rate = 44100.0
	f := newFixture(t, sine(200, rate, int(rate)), rate, defaultSolvers(t))
	f.runToEnd(t)
	require.NoError(t, f.p.Close())

	frame := frameSamples(pitchFrame, rate)
	wantFrames := int(rate) / frame

	f.store.View(func(r *datastore.ReadTxn) {
		assert.InDelta(t, 1.0, r.Time(), 1e-9)

		pitch := r.Pitch()
		require.Equal(t, wantFrames, pitch.Len())
		for i := range pitch.Len() {
			at, v := pitch.At(i)
			assert.InDelta(t, float64(i*frame)/rate, at, 1e-9)
			hz, ok := v.Get()
			require.True(t, ok, "frame %d unvoiced", i)
			assert.InDelta(t, 200, hz, 5, "frame %d", i)
		}

		assert.Positive(t, r.Spectrogram().Len())
		assert.Positive(t, r.Formant(0).Len())
		assert.Equal(t, r.Sound().Len(), r.Glottal().Len())
		assert.Positive(t, r.Sound().Len())
	})

	st := f.p.Status()
	assert.True(t, st.Closed)
	for _, s := range st.Streams {
		assert.Equal(t, StateJoined.String(), s.State, s.Name)
		assert.Empty(t, s.Error, s.Name)
	}
}

func TestPipelineSilenceIsUnvoiced(t *testing.T) {
	t.Parallel()

	const rate = 16000.0
	f := newFixture(t, make([]float32, int(rate/2)), rate, defaultSolvers(t))
	f.runToEnd(t)

	f.store.View(func(r *datastore.ReadTxn) {
		pitch := r.Pitch()
		require.Positive(t, pitch.Len())
		for _, v := range pitch.All() {
			assert.False(t, v.IsSome())
		}
	})
}

func TestPipelineSpectrogramFrames(t *testing.T) {
	t.Parallel()

	const rate = 16000.0
	f := newFixture(t, sine(1000, rate, int(rate/2)), rate, defaultSolvers(t))
	f.runToEnd(t)

	cfg := defaultProvider()
	f.store.View(func(r *datastore.ReadTxn) {
		spec := r.Spectrogram()
		require.Equal(t, int(rate/2)/frameSamples(spectrogramHop, rate), spec.Len())

		_, last, ok := spec.Last()
		require.True(t, ok)
		assert.Len(t, last.Magnitudes, cfg.fftSize/2+1)
		assert.InDelta(t, 2*float64(cfg.viewMax), last.SampleRate, 0)
		assert.InDelta(t, spectrogramWindow, last.FrameDuration, 1e-3)

		// peak-hold normalised, and the strongest bin is the tone
		peak := 0
		for i, m := range last.Magnitudes {
			assert.LessOrEqual(t, m, 1.0+1e-9)
			if m > last.Magnitudes[peak] {
				peak = i
			}
		}
		binHz := last.SampleRate / float64(cfg.fftSize)
		assert.InDelta(t, 1000, float64(peak)*binHz, 2*binHz)
	})
}

func TestPipelineFormantTracksPadded(t *testing.T) {
	t.Parallel()

	const rate = 16000.0
	f := newFixture(t, sine(300, rate, int(rate/4)), rate, defaultSolvers(t))
	f.runToEnd(t)

	f.store.View(func(r *datastore.ReadTxn) {
		require.Equal(t, 4, r.FormantCount())
		n := r.Formant(0).Len()
		require.Positive(t, n)
		for i := range r.FormantCount() {
			assert.Equal(t, n, r.Formant(i).Len(), "formant %d", i)
		}
	})
}

// onFrameGrid asserts that every timestamp of a path, once its resampler
// delay is added back, falls on the capture frame grid of that path.
func onFrameGrid(t *testing.T, times []float64, delay, frameSeconds float64, path string) {
	t.Helper()
	require.NotEmpty(t, times, path)
	for _, at := range times {
		k := math.Round((at + delay) / frameSeconds)
		assert.InDelta(t, k*frameSeconds, at+delay, 1e-9, "%s frame at %.6f", path, at)
	}
}

func TestPipelineResampledPathsShareTimeAxis(t *testing.T) {
	t.Parallel()

	const rate = 22050.0
	f := newFixture(t, sine(200, rate, int(rate/2)), rate, defaultSolvers(t))
	f.runToEnd(t)
	require.NoError(t, f.p.Close())

	osc, err := resample.New(rate, OscilloscopeRate)
	require.NoError(t, err)
	lpc, err := resample.New(rate, formantLPCRate)
	require.NoError(t, err)

	oscDelay := osc.GetDelay() / OscilloscopeRate
	lpcDelay := lpc.GetDelay() / formantLPCRate

	f.store.View(func(r *datastore.ReadTxn) {
		onFrameGrid(t, r.Sound().Times(), oscDelay,
			float64(frameSamples(oscilloscopeFrame, rate))/rate, "sound")
		onFrameGrid(t, r.Glottal().Times(), oscDelay,
			float64(frameSamples(oscilloscopeFrame, rate))/rate, "glottal")
		onFrameGrid(t, r.Formant(0).Times(), lpcDelay,
			float64(frameSamples(formantFrame, rate))/rate, "formant")
	})
}

type rewindRecorder struct {
	metrics.NopRecorder

	mu      sync.Mutex
	rewound map[string]uint64
}

func (r *rewindRecorder) RecordRewind(stream string, entries uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rewound[stream] += entries
}

func (r *rewindRecorder) count(stream string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rewound[stream]
}

func TestPipelineReportsTrackRewind(t *testing.T) {
	t.Parallel()

	const rate = 16000.0
	rec := &rewindRecorder{rewound: make(map[string]uint64)}
	f := newFixture(t, sine(200, rate, int(rate/4)), rate, defaultSolvers(t), WithRecorder(rec))

	// an entry from the future forces the first frame to overwrite it
	f.store.Update(func(w *datastore.WriteTxn) {
		w.Spectrogram().Insert(100, datastore.SpectrogramFrame{})
	})
	f.runToEnd(t)
	require.NoError(t, f.p.Close())

	assert.Equal(t, uint64(1), rec.count(StreamSpectrogram))
	assert.Zero(t, rec.count(StreamFormants))
	f.store.View(func(r *datastore.ReadTxn) {
		assert.Equal(t, uint64(1), r.Spectrogram().Discarded())
		last, _, ok := r.Spectrogram().Last()
		require.True(t, ok)
		assert.Less(t, last, 1.0)
	})
}

type failingPitch struct{}

func (failingPitch) Name() string { return "failing" }
func (failingPitch) Solve([]float64, float64) (solver.PitchResult, error) {
	return solver.PitchResult{}, errors.NewStd("solver exploded")
}

type panickingGlottal struct{}

func (panickingGlottal) Name() string { return "panicking" }
func (panickingGlottal) Solve([]float64, float64) (solver.GlottalResult, error) {
	panic("index out of range")
}

func TestPipelineStreamFailureIsIsolated(t *testing.T) {
	t.Parallel()

	const rate = 16000.0
	solvers := defaultSolvers(t)
	solvers.Pitch = failingPitch{}
	solvers.InverseGlottal = panickingGlottal{}

	f := newFixture(t, sine(200, rate, int(rate/2)), rate, solvers)
	f.runToEnd(t)

	assert.False(t, f.p.Alive(StreamPitch))
	assert.False(t, f.p.Alive(StreamOscilloscope))
	assert.True(t, f.p.Alive(StreamSpectrogram))
	assert.True(t, f.p.Alive(StreamFormants))

	st := f.p.Status()
	pitch, ok := st.Stream(StreamPitch)
	require.True(t, ok)
	assert.Equal(t, StateJoined.String(), pitch.State)
	assert.Contains(t, pitch.Error, "solver exploded")
	assert.Zero(t, pitch.Frames)

	osc, ok := st.Stream(StreamOscilloscope)
	require.True(t, ok)
	assert.Contains(t, osc.Error, "panicked")

	spec, ok := st.Stream(StreamSpectrogram)
	require.True(t, ok)
	assert.Positive(t, spec.Frames)

	require.NoError(t, f.p.Close())
	f.store.View(func(r *datastore.ReadTxn) {
		assert.Zero(t, r.Pitch().Len())
		assert.Positive(t, r.Spectrogram().Len())
	})
}

func TestPipelineCloseAfterOneTick(t *testing.T) {
	t.Parallel()

	const rate = 16000.0
	f := newFixture(t, sine(200, rate, 4096), rate, defaultSolvers(t))
	require.NoError(t, f.p.ProcessAll(context.Background()))
	assert.True(t, f.p.Status().Started)

	require.NoError(t, f.p.Close())
	require.NoError(t, f.p.Close(), "close is idempotent")

	for _, s := range f.p.Status().Streams {
		assert.Equal(t, StateJoined.String(), s.State, s.Name)
		assert.False(t, s.Alive, s.Name)
	}
	assert.ErrorIs(t, f.p.ProcessAll(context.Background()), ErrClosed)
}

func TestPipelineCloseBeforeStart(t *testing.T) {
	t.Parallel()

	f := newFixture(t, make([]float32, 1024), 16000, defaultSolvers(t))
	require.NoError(t, f.p.Close())
	for _, s := range f.p.Status().Streams {
		assert.Equal(t, StateJoined.String(), s.State, s.Name)
	}
	assert.ErrorIs(t, f.p.ProcessAll(context.Background()), ErrClosed)
}

func TestPipelineTimeAdvancesPerBlock(t *testing.T) {
	t.Parallel()

	const rate = 16000.0
	f := newFixture(t, make([]float32, 4096), rate, defaultSolvers(t))
	ctx := context.Background()

	require.NoError(t, f.p.ProcessAll(ctx))
	assert.InDelta(t, 512/rate, f.p.Time(), 1e-12)
	require.NoError(t, f.p.ProcessAll(ctx))
	assert.InDelta(t, 1024/rate, f.p.Time(), 1e-12)

	f.store.View(func(r *datastore.ReadTxn) {
		assert.InDelta(t, 1024/rate, r.Time(), 1e-12)
	})
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	src := capture.NewBuffer(64, 16000)
	t.Cleanup(src.Close)
	store, err := datastore.New(4)
	require.NoError(t, err)
	solvers := defaultSolvers(t)

	missing := solvers
	missing.Formant = nil

	tests := []struct {
		name    string
		src     capture.Source
		store   *datastore.DataStore
		cfg     Provider
		solvers Solvers
	}{
		{"nil source", nil, store, defaultProvider(), solvers},
		{"nil store", src, nil, defaultProvider(), solvers},
		{"nil provider", src, store, nil, solvers},
		{"missing solver", src, store, defaultProvider(), missing},
		{"zero rate", capture.NewBuffer(64, 0), store, defaultProvider(), solvers},
		{"bad fft size", src, store, testProvider{fftSize: 0, viewMax: 4000, formants: 4}, solvers},
		{"too many formants", src, store, testProvider{fftSize: 512, viewMax: 4000, formants: 99}, solvers},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := New(tt.src, tt.store, tt.cfg, tt.solvers)
			require.ErrorIs(t, err, ErrInitialization)
			assert.Nil(t, p)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}

	_, err = New(src, store, defaultProvider(), solvers, WithBlockSize(BlockSizeConfig{}))
	require.ErrorIs(t, err, ErrInitialization)
}

func TestNewResizesFormantTracks(t *testing.T) {
	t.Parallel()

	src := capture.NewBuffer(64, 16000)
	defer src.Close()
	store, err := datastore.New(4)
	require.NoError(t, err)

	cfg := defaultProvider()
	cfg.formants = 6
	p, err := New(src, store, cfg, defaultSolvers(t))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	store.View(func(r *datastore.ReadTxn) {
		assert.Equal(t, 6, r.FormantCount())
	})
}
