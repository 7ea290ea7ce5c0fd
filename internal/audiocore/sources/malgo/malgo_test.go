package malgo

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/speechscope/internal/audiocore/capture"
)

func TestConvertToFloat32(t *testing.T) {
	t.Parallel()

	s16 := make([]byte, 4)
	binary.LittleEndian.PutUint16(s16[0:], uint16(16384))
	binary.LittleEndian.PutUint16(s16[2:], 0x8000) // -32768

	f32 := make([]byte, 8)
	binary.LittleEndian.PutUint32(f32[0:], math.Float32bits(0.25))
	binary.LittleEndian.PutUint32(f32[4:], math.Float32bits(-0.75))

	s24 := []byte{0x00, 0x00, 0x40, 0x00, 0x00, 0xc0} // +0.5, -0.5

	tests := []struct {
		name     string
		input    []byte
		format   malgo.FormatType
		channels int
		want     []float32
	}{
		{"s16 mono", s16, malgo.FormatS16, 1, []float32{0.5, -1}},
		{"f32 mono", f32, malgo.FormatF32, 1, []float32{0.25, -0.75}},
		{"f32 stereo downmix", f32, malgo.FormatF32, 2, []float32{-0.25}},
		{"s24 mono", s24, malgo.FormatS24, 1, []float32{0.5, -0.5}},
		{"u8 silence", []byte{128, 128}, malgo.FormatU8, 1, []float32{0, 0}},
		{"partial frame ignored", s16[:3], malgo.FormatS16, 1, []float32{0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ConvertToFloat32(tt.input, tt.format, tt.channels, nil)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-6, "sample %d", i)
			}
		})
	}
}

func TestConvertToFloat32UnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := ConvertToFloat32([]byte{0, 0}, malgo.FormatUnknown, 1, nil)
	require.Error(t, err)
}

func TestApplyGainClamps(t *testing.T) {
	t.Parallel()

	samples := []float32{0.25, 0.75, -0.75}
	applyGain(samples, 2)
	assert.Equal(t, []float32{0.5, 1, -1}, samples)
}

func TestSelectDevice(t *testing.T) {
	t.Parallel()

	devices := []AudioDeviceInfo{
		{Index: 0, Name: "HDA Intel PCH: ALC3246 Analog", ID: ":0,0"},
		{Index: 1, Name: "USB Audio Device", ID: ":1,0", Default: true},
		{Index: 2, Name: "Loopback", ID: ":2,0"},
	}

	tests := []struct {
		name    string
		query   string
		want    int
		wantErr bool
	}{
		{"empty selects default", "", 1, false},
		{"sysdefault selects default", "sysdefault", 1, false},
		{"exact name", "Loopback", 2, false},
		{"decoded id", ":0,0", 0, false},
		{"substring", "USB", 1, false},
		{"no match", "Focusrite", -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := selectDevice(devices, tt.query)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := selectDevice(nil, "")
	require.Error(t, err)
}

func TestBackendFor(t *testing.T) {
	t.Parallel()

	b, err := backendFor("pulse")
	require.NoError(t, err)
	assert.Equal(t, malgo.Backend(malgo.BackendPulseaudio), b)

	_, err = backendFor("oss4")
	require.Error(t, err)
}

func TestNewSourceValidatesGain(t *testing.T) {
	t.Parallel()

	target := capture.NewBuffer(1024, 48000)
	defer target.Close()

	_, err := NewSource(Config{Gain: 3}, target)
	require.Error(t, err)

	s, err := NewSource(Config{}, target)
	require.NoError(t, err)
	assert.InDelta(t, 48000.0, s.SampleRate(), 0)
	assert.False(t, s.IsActive())
	require.NoError(t, s.Stop(), "stopping an idle source is a no-op")

	_, err = NewSource(Config{}, nil)
	require.Error(t, err)
}

func TestOnAudioDataWritesMonoSamples(t *testing.T) {
	t.Parallel()

	target := capture.NewBuffer(1024, 48000)
	defer target.Close()

	s, err := NewSource(Config{Gain: 0.5}, target)
	require.NoError(t, err)
	s.formatType = malgo.FormatF32
	s.channels = 1

	frame := make([]byte, 4*4)
	for i := range 4 {
		binary.LittleEndian.PutUint32(frame[i*4:], math.Float32bits(0.5))
	}
	s.onAudioData(nil, frame, 4)

	out := make([]float32, 4)
	n, err := target.Pull(out)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	for _, v := range out {
		assert.InDelta(t, 0.25, v, 1e-6)
	}
}
