package resample

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/speechscope/internal/errors"
)

func sine(freq, rate float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	return out
}

// resampleChunked runs the signal through r in capture-sized blocks.
func resampleChunked(t *testing.T, r *Resampler, in []float32, chunk int) []float64 {
	t.Helper()
	var out []float64
	for off := 0; off < len(in); off += chunk {
		res, err := r.Process(in[off:min(off+chunk, len(in))])
		require.NoError(t, err)
		out = append(out, res...)
	}
	return out
}

func risingZeroCrossings(y []float64, from int) []float64 {
	var zc []float64
	for i := max(from, 1); i < len(y); i++ {
		if y[i-1] < 0 && y[i] >= 0 {
			zc = append(zc, float64(i-1)+y[i-1]/(y[i-1]-y[i]))
		}
	}
	return zc
}

func TestNewRejectsInvalidRates(t *testing.T) {
	t.Parallel()

	for _, rates := range [][2]float64{{0, 8000}, {44100, -1}, {math.NaN(), 8000}, {math.Inf(1), 8000}} {
		_, err := New(rates[0], rates[1])
		require.ErrorIs(t, err, ErrInvalidRate, "rates %v", rates)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	}

	_, err := New(44100, 8000, WithQuality("ultra"))
	require.ErrorIs(t, err, ErrUnknownQuality)
}

func TestSinePeriodPreservedAfterDelayCompensation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in, out float64
	}{
		{"capture to spectrogram rate", 44100, 8000},
		{"capture to formant lpc rate", 44100, 11000},
		{"48k to 16k", 48000, 16000},
		{"default capture to spectrogram rate", 48000, 8000},
		{"default capture to formant lpc rate", 48000, 11000},
		{"32k to 8k", 32000, 8000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			const freq = 200.0
			r, err := New(tt.in, tt.out)
			require.NoError(t, err)

			y := resampleChunked(t, r, sine(freq, tt.in, int(tt.in)), 512)
			require.InDelta(t, tt.out, float64(len(y)), tt.out*0.1, "roughly one second of output")

			delay := r.GetDelay()
			period := tt.out / freq

			// skip the filter warm-up
			zc := risingZeroCrossings(y, int(math.Ceil(delay))+int(period))
			require.Greater(t, len(zc), 10)
			for i := 1; i < len(zc); i++ {
				assert.InDelta(t, period, zc[i]-zc[i-1], 1.0, "period between crossings %d and %d", i-1, i)
			}

			// the input has rising crossings at multiples of the period, so
			// once the delay is removed every crossing lands on one
			for _, z := range zc {
				k := math.Round((z - delay) / period)
				assert.InDelta(t, k*period, z-delay, 1.0, "crossing at %.2f", z)
			}
		})
	}
}

func TestEqualRatesPassThrough(t *testing.T) {
	t.Parallel()

	r, err := New(16000, 16000)
	require.NoError(t, err)
	in := sine(100, 16000, 64)
	out, err := r.Process(in)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	assert.InDelta(t, float64(in[10]), out[10], 1e-7)
	assert.InDelta(t, 0.0, r.GetDelay(), 0)
}

func TestLengthHelpers(t *testing.T) {
	t.Parallel()

	r, err := New(44100, 8000)
	require.NoError(t, err)

	assert.Equal(t, 80, r.GetExpectedOutLength(441))
	assert.Equal(t, 441, r.GetRequiredInputLength(80))
	assert.Equal(t, 447, r.GetRequiredInputLength(81), "rounds up")
}

func TestRateChangeBumpsGeneration(t *testing.T) {
	t.Parallel()

	r, err := New(44100, 8000)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), r.Generation())

	require.NoError(t, r.SetInputRate(44100))
	assert.Equal(t, uint64(0), r.Generation(), "same rate keeps the engine")

	require.NoError(t, r.SetInputRate(48000))
	assert.Equal(t, uint64(1), r.Generation())
	assert.InDelta(t, 48000.0, r.InputRate(), 0)

	require.NoError(t, r.SetOutputRate(16000))
	require.NoError(t, r.SetRate(16000, 16000))
	assert.Equal(t, uint64(3), r.Generation())
	assert.InDelta(t, 0.0, r.GetDelay(), 0)

	require.Error(t, r.SetOutputRate(0))
	assert.InDelta(t, 16000.0, r.OutputRate(), 0, "failed change keeps previous rates")
}

func TestDelayIsCachedPerRatePair(t *testing.T) {
	t.Parallel()

	d1, err := groupDelay(22050, 8000, "low")
	require.NoError(t, err)
	_, ok := delays.Get(delayKey(22050, 8000, "low"))
	require.True(t, ok)

	d2, err := groupDelay(22050, 8000, "low")
	require.NoError(t, err)
	assert.InDelta(t, d1, d2, 0)
}

func TestParabolicPeak(t *testing.T) {
	t.Parallel()

	// samples of a parabola peaking at 3.25
	y := make([]float64, 8)
	for i := range y {
		x := float64(i) - 3.25
		y[i] = 10 - x*x
	}
	p, best := parabolicPeak(y)
	assert.Equal(t, 3, best)
	assert.InDelta(t, 3.25, p, 1e-9)

	_, best = parabolicPeak(nil)
	assert.Equal(t, -1, best)
}

func TestCrossCorrelateFindsShiftedBurst(t *testing.T) {
	t.Parallel()

	b := newCalibrationBurst(8000, 8000)
	ref, center := b.reference(8000)

	// the burst centred at sample 1000.4 of a longer signal
	y := make([]float64, 3000)
	for n := range y {
		y[n] = b.at((float64(n) - 1000.4) / 8000)
	}

	corr := crossCorrelate(y, ref)
	require.Len(t, corr, len(y)-len(ref)+1)
	p, best := parabolicPeak(corr)
	require.GreaterOrEqual(t, best, 0)
	assert.InDelta(t, 1000.4, p+float64(center), 0.05)

	assert.Nil(t, crossCorrelate(ref[:10], ref))
}

// TestDelayMeasuredForCommonRates covers every capture rate the pipeline is
// expected to run at, converted to each analysis rate. A burst resampled by a
// streaming resampler must land where the measured delay says it will.
func TestDelayMeasuredForCommonRates(t *testing.T) {
	t.Parallel()

	for _, in := range []float64{8000, 16000, 22050, 44100, 48000} {
		for _, out := range []float64{8000, 11000, 16000} {
			t.Run(fmt.Sprintf("%g to %g", in, out), func(t *testing.T) {
				t.Parallel()

				r, err := New(in, out)
				require.NoError(t, err)
				delay := r.GetDelay()
				require.False(t, math.IsNaN(delay))
				assert.Less(t, math.Abs(delay), 0.1*out, "delay %.2f samples", delay)

				// a burst somewhere else in a longer stream, in capture sized blocks
				const centerSeconds = 0.4
				b := newCalibrationBurst(in, out)
				in32 := make([]float32, int(in*0.7))
				for k := range in32 {
					in32[k] = float32(b.at(float64(k)/in - centerSeconds))
				}
				y := resampleChunked(t, r, in32, 441)

				ref, center := b.reference(out)
				p, best := parabolicPeak(crossCorrelate(y, ref))
				require.GreaterOrEqual(t, best, 0)
				assert.InDelta(t, centerSeconds*out+delay, p+float64(center), 1.0)
			})
		}
	}
}
