package file

import (
	"context"
	"io"
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
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writeSineWAV writes a 16-bit sine and returns its path.
func writeSineWAV(t *testing.T, rate, channels, frames int, freq float64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sine.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	data := make([]int, frames*channels)
	for i := range frames {
		v := int(math.Round(16384 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))))
		for c := range channels {
			data[i*channels+c] = v
		}
	}
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: rate, NumChannels: channels},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestReadInfo(t *testing.T) {
	t.Parallel()

	path := writeSineWAV(t, 16000, 2, 8000, 200)
	info, err := ReadInfo(path)
	require.NoError(t, err)
	assert.Equal(t, 16000, info.SampleRate)
	assert.Equal(t, 2, info.NumChannels)
	assert.Equal(t, 16, info.BitDepth)
	assert.InDelta(t, 500*time.Millisecond, info.Duration, float64(5*time.Millisecond))
}

func TestReadInfoRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "noise.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a riff file"), 0o600))
	_, err := ReadInfo(path)
	require.Error(t, err)

	_, err = ReadInfo(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}

func TestSourceFeedsWholeFileThenEOF(t *testing.T) {
	t.Parallel()

	const frames = 20000
	path := writeSineWAV(t, 8000, 1, frames, 200)

	// smaller than the file so the unpaced source must respect backpressure
	target := capture.NewBuffer(4096, 44100)
	defer target.Close()

	src, err := NewSource(Config{Path: path}, target)
	require.NoError(t, err)
	assert.InDelta(t, 8000.0, target.SampleRate(), 0, "file rate is applied to the target")

	require.NoError(t, src.Start(context.Background()))
	defer func() { _ = src.Stop() }()

	var got []float32
	block := make([]float32, 512)
	for {
		n, err := target.Pull(block)
		got = append(got, block[:n]...)
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
	}

	require.Len(t, got, frames)
	assert.Equal(t, uint64(0), target.Dropped())
	assert.Equal(t, uint64(frames), src.Written())
	assert.InDelta(t, 0.5*math.Sin(2*math.Pi*200*10/8000), got[10], 1e-3)

	select {
	case <-src.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("source did not finish")
	}
	require.NoError(t, src.Err())
}

func TestSourceStopInterruptsPacedFeed(t *testing.T) {
	t.Parallel()

	path := writeSineWAV(t, 8000, 1, 8000*10, 100)
	target := capture.NewBuffer(8000*20, 8000)
	defer target.Close()

	src, err := NewSource(Config{Path: path, Paced: true}, target)
	require.NoError(t, err)
	require.NoError(t, src.Start(context.Background()))
	require.Error(t, src.Start(context.Background()), "double start")

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, src.Stop())
	require.NoError(t, src.Stop())

	assert.Less(t, src.Written(), uint64(8000*10), "paced feed must not outrun the clock")
}

func TestDownmixStereo(t *testing.T) {
	t.Parallel()

	dst := make([]float32, 2)
	got := downmix(dst, []int{16384, 0, -32768, -32768}, 2, 32768)
	assert.InDeltaSlice(t, []float32{0.25, -1}, got, 1e-6)
}
