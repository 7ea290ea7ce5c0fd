package conf

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// defaultSettings unmarshals the viper defaults into a fresh Settings.
func defaultSettings(t *testing.T) *Settings {
	t.Helper()
	viper.Reset()
	setDefaultConfig()
	t.Cleanup(viper.Reset)

	s := &Settings{}
	require.NoError(t, viper.Unmarshal(s))
	return s
}

func TestDefaultsAreValid(t *testing.T) {
	s := defaultSettings(t)

	require.NoError(t, ValidateSettings(s))

	assert.Equal(t, DefaultPitchAlgorithm, s.Analysis.PitchAlgorithm)
	assert.Equal(t, DefaultFormantAlgorithm, s.Analysis.FormantAlgorithm)
	assert.Equal(t, 10, s.Analysis.LPOrder)
	assert.Equal(t, 4000, s.View.MaxFrequency)
	assert.Equal(t, 1024, s.View.FFTSize)
	assert.Equal(t, DefaultFormantCount, s.View.FormantCount)
	assert.Equal(t, 512, s.Pipeline.BlockSize.Initial)
	assert.Equal(t, 8192, s.Pipeline.BlockSize.GrowThreshold)
	assert.Equal(t, 16000, s.Pipeline.BufferSamples)
	assert.Equal(t, 2*time.Second, s.Pipeline.JoinTimeout)
	assert.Equal(t, "info", s.Logging.DefaultLevel)
	require.NotNil(t, s.Logging.Console)
	assert.True(t, s.Logging.Console.Enabled)
}

func TestValidateSettingsCollectsErrors(t *testing.T) {
	s := defaultSettings(t)
	s.View.FFTSize = 1000
	s.View.FormantCount = 0
	s.Pipeline.BlockSize.Min = 1024 // above initial
	s.Analysis.PitchAlgorithm = ""

	err := ValidateSettings(s)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 4)
	assert.Contains(t, err.Error(), "view.fftsize 1000")
	assert.Contains(t, err.Error(), "analysis.pitchalgorithm must not be empty")
}

func TestValidateFFTSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n     int
		valid bool
	}{
		{64, true},
		{1024, true},
		{16384, true},
		{32, false},
		{1000, false},
		{32768, false},
	}
	for _, tt := range tests {
		err := ValidateFFTSize(tt.n)
		assert.Equal(t, tt.valid, err == nil, "n=%d", tt.n)
	}
}

func TestAnalysisProviderUpdateView(t *testing.T) {
	s := defaultSettings(t)
	a := NewAnalysis(s)

	assert.Equal(t, 4000, a.ViewMaxFrequency())
	assert.Equal(t, 4, a.FormantCount())

	v := a.View()
	v.MaxFrequency = 5500
	v.FFTSize = 2048
	v.FormantCount = 7 // ignored
	require.NoError(t, a.UpdateView(v))

	assert.Equal(t, 5500, a.ViewMaxFrequency())
	assert.Equal(t, 2048, a.FFTSize())
	assert.Equal(t, 4, a.FormantCount())

	v.FFTSize = 3000
	require.Error(t, a.UpdateView(v))
	assert.Equal(t, 2048, a.FFTSize(), "rejected update must not apply")
}
