// Package sources creates the producers that feed the capture buffer.
package sources

import (
	"context"

	"github.com/tphakala/speechscope/internal/audiocore/capture"
	"github.com/tphakala/speechscope/internal/audiocore/sources/file"
	"github.com/tphakala/speechscope/internal/audiocore/sources/malgo"
	"github.com/tphakala/speechscope/internal/conf"
	"github.com/tphakala/speechscope/internal/errors"
)

// Kind selects the producer implementation.
type Kind string

const (
	KindSoundCard Kind = "soundcard"
	KindFile      Kind = "file"
)

// Producer writes captured audio into a capture.Writer until stopped.
type Producer interface {
	Start(ctx context.Context) error
	Stop() error
	SampleRate() float64
}

// CreateSource creates a producer of the given kind writing into target.
func CreateSource(kind Kind, settings *conf.Settings, target capture.Writer) (Producer, error) {
	switch kind {
	case KindSoundCard:
		return malgo.NewSource(malgo.Config{
			DeviceName: settings.Audio.Source,
			Backend:    settings.Audio.Backend,
			SampleRate: uint32(settings.Audio.SampleRate),
			Channels:   1,
			Gain:       1.0,
		}, target)

	case KindFile:
		return file.NewSource(file.Config{
			Path:  settings.Input.Path,
			Paced: settings.Input.Paced,
		}, target)

	default:
		return nil, errors.Newf("unknown source type: %s", kind).
			Component("audiocore.sources").
			Category(errors.CategoryValidation).
			Build()
	}
}

// ListAvailableDevices returns a list of available audio capture devices
func ListAvailableDevices(backend string) ([]malgo.AudioDeviceInfo, error) {
	return malgo.EnumerateDevices(backend)
}

var (
	_ Producer = (*malgo.Source)(nil)
	_ Producer = (*file.Source)(nil)
)
