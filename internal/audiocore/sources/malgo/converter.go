package malgo

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gen2brain/malgo"
)

const (
	int16Scale = 1.0 / 32768.0
	int24Scale = 1.0 / 8388608.0
	int32Scale = 1.0 / 2147483648.0
)

// ConvertToFloat32 decodes interleaved device frames into mono float32
// samples in [-1, 1], averaging channels. dst is reused when large enough.
func ConvertToFloat32(samples []byte, format malgo.FormatType, channels int, dst []float32) ([]float32, error) {
	bytesPerSample, _ := GetFormatInfo(format)
	if bytesPerSample == 0 {
		return nil, fmt.Errorf("unsupported source format: %v", format)
	}
	if channels < 1 {
		channels = 1
	}

	frameSize := bytesPerSample * channels
	frames := len(samples) / frameSize
	if cap(dst) < frames {
		dst = make([]float32, frames)
	}
	dst = dst[:frames]

	inv := 1.0 / float64(channels)
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += decodeSample(samples[i*frameSize+c*bytesPerSample:], format)
		}
		dst[i] = float32(sum * inv)
	}
	return dst, nil
}

func decodeSample(b []byte, format malgo.FormatType) float64 {
	switch format {
	case malgo.FormatU8:
		return (float64(b[0]) - 128) / 128
	case malgo.FormatS16:
		return float64(int16(binary.LittleEndian.Uint16(b))) * int16Scale
	case malgo.FormatS24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xffffff
		}
		return float64(v) * int24Scale
	case malgo.FormatS32:
		return float64(int32(binary.LittleEndian.Uint32(b))) * int32Scale
	case malgo.FormatF32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	default:
		return 0
	}
}

// GetFormatInfo returns information about a malgo format type
func GetFormatInfo(format malgo.FormatType) (bytesPerSample int, name string) {
	switch format {
	case malgo.FormatU8:
		return 1, "U8"
	case malgo.FormatS16:
		return 2, "S16"
	case malgo.FormatS24:
		return 3, "S24"
	case malgo.FormatS32:
		return 4, "S32"
	case malgo.FormatF32:
		return 4, "F32"
	default:
		return 0, "Unknown"
	}
}

// applyGain scales samples in place, clamping to [-1, 1].
func applyGain(samples []float32, gain float64) {
	g := float32(gain)
	for i, s := range samples {
		s *= g
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		samples[i] = s
	}
}
