// Package file feeds a WAV file into a capture buffer, either at real-time
// pace (to mimic a sound card) or as fast as the pipeline consumes it.
package file

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/speechscope/internal/audiocore/capture"
	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/logger"
)

// ComponentFile identifies file capture errors
const ComponentFile = "audiocore.file"

const (
	defaultChunkFrames = 1024
	backpressurePoll   = time.Millisecond
)

// GetLogger returns the file source logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("audiocore.file")
}

// Info describes a WAV file.
type Info struct {
	SampleRate  int
	NumChannels int
	BitDepth    int
	Duration    time.Duration
}

// Config configures a file source.
type Config struct {
	Path        string
	Paced       bool
	ChunkFrames int
}

// freeReporter is implemented by capture targets that can report free space,
// used to apply backpressure when not pacing.
type freeReporter interface {
	Free() int
}

// Source reads a WAV file into a capture.Writer.
type Source struct {
	config Config
	target capture.Writer
	info   Info

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}

	written atomic.Uint64
	errMu   sync.Mutex
	err     error
}

// ReadInfo validates path as a supported WAV file and returns its format.
func ReadInfo(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, errors.New(err).
			Component(ComponentFile).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer func() { _ = f.Close() }()

	decoder := wav.NewDecoder(f)
	info, err := readInfo(decoder, path)
	if err != nil {
		return Info{}, err
	}
	if err := decoder.FwdToPCM(); err == nil {
		frameBytes := int64(info.NumChannels * info.BitDepth / 8)
		frames := decoder.PCMLen() / frameBytes
		info.Duration = time.Duration(float64(frames) / float64(info.SampleRate) * float64(time.Second))
	}
	return info, nil
}

func readInfo(decoder *wav.Decoder, path string) (Info, error) {
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return Info{}, errors.New(errors.NewStd("invalid WAV file format")).
			Component(ComponentFile).
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}
	if _, err := divisorFor(int(decoder.BitDepth)); err != nil {
		return Info{}, err
	}
	if decoder.NumChans < 1 || decoder.NumChans > 2 {
		return Info{}, errors.Newf("unsupported number of channels: %d", decoder.NumChans).
			Component(ComponentFile).
			Category(errors.CategoryValidation).
			Build()
	}

	return Info{
		SampleRate:  int(decoder.SampleRate),
		NumChannels: int(decoder.NumChans),
		BitDepth:    int(decoder.BitDepth),
	}, nil
}

func divisorFor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, errors.Newf("unsupported bit depth: %d", bitDepth).
			Component(ComponentFile).
			Category(errors.CategoryValidation).
			Build()
	}
}

// NewSource validates the file and prepares a source writing into target.
func NewSource(config Config, target capture.Writer) (*Source, error) {
	if target == nil {
		return nil, errors.New(errors.NewStd("capture target is nil")).
			Component(ComponentFile).
			Category(errors.CategoryValidation).
			Build()
	}
	info, err := ReadInfo(config.Path)
	if err != nil {
		return nil, err
	}
	if config.ChunkFrames <= 0 {
		config.ChunkFrames = defaultChunkFrames
	}

	target.SetSampleRate(float64(info.SampleRate))
	return &Source{
		config: config,
		target: target,
		info:   info,
		done:   make(chan struct{}),
	}, nil
}

// Info returns the format of the file being read.
func (s *Source) Info() Info {
	return s.info
}

// SampleRate returns the file's sample rate.
func (s *Source) SampleRate() float64 {
	return float64(s.info.SampleRate)
}

// Start begins feeding the file. The target is finished when the file ends,
// ctx is cancelled, or Stop is called.
func (s *Source) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New(errors.NewStd("source already running")).
			Component(ComponentFile).
			Category(errors.CategoryState).
			Build()
	}

	f, err := os.Open(s.config.Path)
	if err != nil {
		s.running.Store(false)
		return errors.New(err).
			Component(ComponentFile).
			Category(errors.CategoryFileIO).
			Context("path", s.config.Path).
			Build()
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Go(func() {
		defer close(s.done)
		defer func() { _ = f.Close() }()
		defer s.target.Finish()

		if err := s.feed(runCtx, f); err != nil {
			s.setErr(err)
			GetLogger().Error("file capture failed", logger.Error(err), logger.String("path", s.config.Path))
		}
	})
	return nil
}

// Stop cancels feeding and waits for the reader goroutine.
func (s *Source) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	return s.Err()
}

// Done is closed once the whole file was written or feeding stopped.
func (s *Source) Done() <-chan struct{} {
	return s.done
}

// Written returns the number of mono samples written so far.
func (s *Source) Written() uint64 {
	return s.written.Load()
}

// Err returns the decoding error that ended feeding, if any.
func (s *Source) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Source) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

func (s *Source) feed(ctx context.Context, f *os.File) error {
	decoder := wav.NewDecoder(f)
	if _, err := readInfo(decoder, s.config.Path); err != nil {
		return err
	}
	if err := decoder.FwdToPCM(); err != nil {
		return errors.New(err).
			Component(ComponentFile).
			Category(errors.CategoryFileIO).
			Context("operation", "seek_pcm").
			Build()
	}

	divisor, _ := divisorFor(s.info.BitDepth)
	channels := s.info.NumChannels
	buf := &audio.IntBuffer{
		Data:   make([]int, s.config.ChunkFrames*channels),
		Format: &audio.Format{SampleRate: s.info.SampleRate, NumChannels: channels},
	}
	mono := make([]float32, s.config.ChunkFrames)

	start := time.Now()
	var total uint64
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return errors.New(err).
				Component(ComponentFile).
				Category(errors.CategoryFileIO).
				Context("operation", "decode_pcm").
				Build()
		}
		if n == 0 {
			GetLogger().Info("end of file reached",
				logger.String("path", s.config.Path),
				logger.Uint64("samples", total))
			return nil
		}

		frames := n / channels
		chunk := downmix(mono[:frames], buf.Data[:frames*channels], channels, divisor)

		if s.config.Paced {
			deadline := start.Add(time.Duration(float64(total) / float64(s.info.SampleRate) * float64(time.Second)))
			if !sleepUntil(ctx, deadline) {
				return nil
			}
		} else if !s.waitForRoom(ctx, len(chunk)) {
			return nil
		}

		s.target.Write(chunk)
		total += uint64(len(chunk))
		s.written.Store(total)
	}
}

// waitForRoom blocks until the target can take n samples without dropping.
func (s *Source) waitForRoom(ctx context.Context, n int) bool {
	fr, ok := s.target.(freeReporter)
	if !ok {
		return true
	}
	ticker := time.NewTicker(backpressurePoll)
	defer ticker.Stop()
	for fr.Free() < n {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}

func sleepUntil(ctx context.Context, deadline time.Time) bool {
	d := time.Until(deadline)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func downmix(dst []float32, interleaved []int, channels int, divisor float32) []float32 {
	if channels == 1 {
		for i, v := range interleaved {
			dst[i] = float32(v) / divisor
		}
		return dst
	}
	scale := divisor * float32(channels)
	for i := range dst {
		var sum int
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		dst[i] = float32(sum) / scale
	}
	return dst
}
