// Package malgo captures from a sound card through miniaudio and writes mono
// float32 samples into a capture buffer.
package malgo

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/speechscope/internal/audiocore/capture"
	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/logger"
)

// ComponentMalgo identifies sound card capture errors
const ComponentMalgo = "audiocore.malgo"

const restartDelay = time.Second

// GetLogger returns the sound card capture logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("audiocore.malgo")
}

// Config contains configuration for the malgo audio source
type Config struct {
	DeviceName string
	Backend    string
	SampleRate uint32
	Channels   uint32
	Gain       float64
}

// Source captures from a sound card into a capture.Writer.
type Source struct {
	config Config
	target capture.Writer

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	running atomic.Bool
	cancel  context.CancelFunc

	formatType malgo.FormatType
	channels   int
	actualRate atomic.Uint32
	gain       atomic.Value // float64

	scratch []float32 // touched only by the device callback
	frames  atomic.Uint64
}

// NewSource creates a sound card source writing into target.
func NewSource(config Config, target capture.Writer) (*Source, error) {
	if target == nil {
		return nil, errors.New(errors.NewStd("capture target is nil")).
			Component(ComponentMalgo).
			Category(errors.CategoryValidation).
			Build()
	}
	if config.SampleRate == 0 {
		config.SampleRate = 48000
	}
	if config.Channels == 0 {
		config.Channels = 1
	}
	if config.Gain == 0 {
		config.Gain = 1.0
	}

	s := &Source{config: config, target: target}
	if err := s.SetGain(config.Gain); err != nil {
		return nil, err
	}
	s.actualRate.Store(config.SampleRate)
	return s, nil
}

// Start opens the device and begins capturing. Capture stops when ctx is
// cancelled or Stop is called.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return errors.New(errors.NewStd("source already running")).
			Component(ComponentMalgo).
			Category(errors.CategoryState).
			Build()
	}

	backend, err := backendFor(s.config.Backend)
	if err != nil {
		return err
	}

	malgoCtx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, func(message string) {
		GetLogger().Debug("miniaudio", logger.String("message", message))
	})
	if err != nil {
		return errors.New(err).
			Component(ComponentMalgo).
			Category(errors.CategoryAudio).
			Context("operation", "init_context").
			Build()
	}

	infos, err := malgoCtx.Devices(malgo.Capture)
	if err != nil {
		_ = malgoCtx.Uninit()
		return errors.New(err).
			Component(ComponentMalgo).
			Category(errors.CategoryAudio).
			Context("operation", "enumerate_devices").
			Build()
	}
	described := make([]AudioDeviceInfo, len(infos))
	for i := range infos {
		described[i] = describeDevice(i, &infos[i])
	}
	index, err := selectDevice(described, s.config.DeviceName)
	if err != nil {
		_ = malgoCtx.Uninit()
		return err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = s.config.Channels
	deviceConfig.Capture.DeviceID = infos[index].ID.Pointer()
	deviceConfig.SampleRate = s.config.SampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onAudioData,
		Stop: s.onDeviceStop,
	})
	if err != nil {
		_ = malgoCtx.Uninit()
		return errors.New(err).
			Component(ComponentMalgo).
			Category(errors.CategoryAudio).
			Context("device_name", described[index].Name).
			Context("operation", "init_device").
			Build()
	}

	s.formatType = device.CaptureFormat()
	s.channels = int(device.CaptureChannels())
	s.actualRate.Store(device.SampleRate())
	s.target.SetSampleRate(float64(device.SampleRate()))

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		return errors.New(err).
			Component(ComponentMalgo).
			Category(errors.CategoryAudio).
			Context("operation", "start_device").
			Build()
	}

	s.ctx = malgoCtx
	s.device = device
	s.running.Store(true)

	captureCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.monitor(captureCtx)

	GetLogger().Info("capture started",
		logger.String("device", described[index].Name),
		logger.Int("sample_rate", int(device.SampleRate())),
		logger.Int("channels", s.channels))
	return nil
}

// Stop halts capture and releases the device. The capture target is finished
// so a pipeline pulling from it sees the end of stream.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Swap(false) {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		_ = s.ctx.Uninit()
		s.ctx.Free()
		s.ctx = nil
	}
	s.target.Finish()

	GetLogger().Info("capture stopped", logger.Uint64("frames", s.frames.Load()))
	return nil
}

// SampleRate returns the rate negotiated with the device.
func (s *Source) SampleRate() float64 {
	return float64(s.actualRate.Load())
}

// IsActive returns true if the source is currently capturing
func (s *Source) IsActive() bool {
	return s.running.Load()
}

// SetGain sets the audio gain level (0.0 to 2.0)
func (s *Source) SetGain(gain float64) error {
	if gain < 0.0 || gain > 2.0 {
		return errors.Newf("gain %.2f must be between 0.0 and 2.0", gain).
			Component(ComponentMalgo).
			Category(errors.CategoryValidation).
			Build()
	}
	s.gain.Store(gain)
	return nil
}

func (s *Source) onAudioData(_, pSamples []byte, framecount uint32) {
	samples, err := ConvertToFloat32(pSamples, s.formatType, s.channels, s.scratch)
	if err != nil {
		GetLogger().Error("audio conversion failed", logger.Error(err))
		return
	}
	s.scratch = samples

	if gain := s.gain.Load().(float64); gain != 1.0 {
		applyGain(samples, gain)
	}

	s.target.Write(samples)
	s.frames.Add(uint64(framecount))
}

// onDeviceStop is called when the device stops, either normally or unexpectedly
func (s *Source) onDeviceStop() {
	if !s.running.Load() {
		return
	}
	GetLogger().Warn("audio device stopped unexpectedly, restarting")

	go func() {
		time.Sleep(restartDelay)
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.running.Load() || s.device == nil {
			return
		}
		if err := s.device.Start(); err != nil {
			_ = errors.New(err).
				Component(ComponentMalgo).
				Category(errors.CategoryAudio).
				Context("operation", "restart_device").
				Build()
			GetLogger().Error("audio device restart failed", logger.Error(err))
		}
	}()
}

func (s *Source) monitor(ctx context.Context) {
	<-ctx.Done()
	_ = s.Stop()
}
