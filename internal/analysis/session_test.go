package analysis

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/speechscope/internal/audiocore/capture"
	"github.com/tphakala/speechscope/internal/audiocore/sources"
	"github.com/tphakala/speechscope/internal/conf"
	"github.com/tphakala/speechscope/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testSettings(path string) *conf.Settings {
	return &conf.Settings{
		Audio: conf.AudioSettings{SampleRate: 16000, BufferSecs: 1},
		Input: conf.FileSettings{Path: path},
		Analysis: conf.AnalysisSettings{
			PitchAlgorithm:   conf.DefaultPitchAlgorithm,
			LinpredAlgorithm: conf.DefaultLinpredAlgorithm,
			FormantAlgorithm: conf.DefaultFormantAlgorithm,
			InvglotAlgorithm: conf.DefaultInvglotAlgorithm,
			LPOrder:          10,
		},
		View: conf.ViewSettings{
			MinFrequency:   60,
			MaxFrequency:   4000,
			FFTSize:        512,
			MinGain:        -60,
			MaxGain:        0,
			FrequencyScale: "mel",
			FormantCount:   4,
		},
		Pipeline: conf.PipelineSettings{
			BlockSize: conf.BlockSizeSettings{
				Initial: 512, Min: 256, Max: 4096, Step: 128,
				GrowThreshold: 8192, ShrinkThreshold: 1024,
			},
			BufferSamples:   16000,
			JoinTimeout:     2 * time.Second,
			ResampleQuality: "low",
		},
	}
}

func writeSineWAV(t *testing.T, rate, frames int, freq float64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sine.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	data := make([]int, frames)
	for i := range data {
		data[i] = int(math.Round(12000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))))
	}
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: rate, NumChannels: 1},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestFileAnalysisSummarisesSine(t *testing.T) {
	t.Parallel()

	path := writeSineWAV(t, 16000, 16000, 200)
	sum, err := FileAnalysis(t.Context(), testSettings(path), nil)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, sum.Duration, 1e-9)
	assert.Positive(t, sum.Frames["pitch"])
	assert.Positive(t, sum.Frames["spectrogram"])
	assert.Equal(t, int(sum.Frames["pitch"]), sum.PitchFrames)
	assert.Greater(t, sum.VoicedRatio(), 0.8)
	assert.InDelta(t, 200.0, sum.MeanPitch, 5)
	assert.Len(t, sum.Formants, 4)

	var out bytes.Buffer
	require.NoError(t, WriteSummary(&out, sum))
	assert.Contains(t, out.String(), "Pitch:")
	assert.Contains(t, out.String(), sum.SessionID)
}

func TestFileAnalysisRequiresInput(t *testing.T) {
	t.Parallel()

	_, err := FileAnalysis(t.Context(), testSettings(""), nil)
	require.ErrorIs(t, err, ErrNoInput)

	_, err = FileAnalysis(t.Context(), testSettings(filepath.Join(t.TempDir(), "missing.wav")), nil)
	require.Error(t, err)
}

// blockingProducer writes nothing and only stops when asked.
type blockingProducer struct {
	target  capture.Writer
	started chan struct{}
}

func (p *blockingProducer) Start(context.Context) error { close(p.started); return nil }
func (p *blockingProducer) Stop() error                 { return nil }
func (p *blockingProducer) SampleRate() float64         { return 16000 }

func TestSessionRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	prod := &blockingProducer{started: make(chan struct{})}
	s, err := NewSession(testSettings(""), sources.KindSoundCard,
		WithProducer(func(target capture.Writer) (sources.Producer, error) {
			prod.target = target
			return prod, nil
		}))
	require.NoError(t, err)
	assert.Same(t, s.Capture(), prod.target)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-prod.started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop after cancellation")
	}
	assert.True(t, s.Pipeline().Status().Closed)
}

func TestNewSessionRejectsUnknownAlgorithm(t *testing.T) {
	t.Parallel()

	settings := testSettings("")
	settings.Analysis.PitchAlgorithm = "crepe"
	_, err := NewSession(settings, sources.KindSoundCard,
		WithProducer(func(target capture.Writer) (sources.Producer, error) {
			return &blockingProducer{target: target, started: make(chan struct{})}, nil
		}))
	require.Error(t, err)

	_, err = NewSession(nil, sources.KindSoundCard)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
