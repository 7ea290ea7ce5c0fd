package dsp

import (
	"fmt"
	"math"
	"strings"
)

// Scale maps frequencies to a perceptual or display axis.
type Scale int

const (
	ScaleLinear Scale = iota
	ScaleLog
	ScaleMel
	ScaleERB
)

var scaleNames = map[Scale]string{
	ScaleLinear: "linear",
	ScaleLog:    "log",
	ScaleMel:    "mel",
	ScaleERB:    "erb",
}

// ParseScale returns the scale with the given name.
func ParseScale(name string) (Scale, error) {
	for s, n := range scaleNames {
		if strings.EqualFold(name, n) {
			return s, nil
		}
	}
	return ScaleLinear, fmt.Errorf("unknown frequency scale %q", name)
}

func (s Scale) String() string {
	if n, ok := scaleNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Scale(%d)", int(s))
}

// HzTo converts a frequency in Hz to the scale's unit.
func (s Scale) HzTo(hz float64) float64 {
	switch s {
	case ScaleLog:
		return math.Log2(math.Max(hz, 1))
	case ScaleMel:
		return 2595 * math.Log10(1+hz/700)
	case ScaleERB:
		return 21.4 * math.Log10(1+0.00437*hz)
	default:
		return hz
	}
}

// ToHz converts a value in the scale's unit back to Hz.
func (s Scale) ToHz(v float64) float64 {
	switch s {
	case ScaleLog:
		return math.Exp2(v)
	case ScaleMel:
		return 700 * (math.Pow(10, v/2595) - 1)
	case ScaleERB:
		return (math.Pow(10, v/21.4) - 1) / 0.00437
	default:
		return v
	}
}

// Position maps hz to [0, 1] between minHz and maxHz on this scale.
func (s Scale) Position(hz, minHz, maxHz float64) float64 {
	lo, hi := s.HzTo(minHz), s.HzTo(maxHz)
	if hi == lo {
		return 0
	}
	return (s.HzTo(hz) - lo) / (hi - lo)
}
