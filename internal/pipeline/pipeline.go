// Package pipeline runs the four analysis streams of a speechscope session.
//
// One orchestration goroutine calls ProcessAll once per capture tick. Each
// call pulls a block from the capture source, advances the session clock in
// the data store and fans the block out to one SampleBuffer per stream. The
// first call starts the stream workers, each of which pulls frames at its own
// cadence, runs its solvers and writes timestamped results back into the data
// store. Close cancels the buffers and joins the workers.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/speechscope/internal/audiocore/buffer"
	"github.com/tphakala/speechscope/internal/audiocore/capture"
	"github.com/tphakala/speechscope/internal/audiocore/resample"
	"github.com/tphakala/speechscope/internal/datastore"
	"github.com/tphakala/speechscope/internal/diagnostics"
	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/logger"
	"github.com/tphakala/speechscope/internal/observability/metrics"
	"github.com/tphakala/speechscope/internal/solver"
)

// Stream names.
const (
	StreamSpectrogram  = "spectrogram"
	StreamPitch        = "pitch"
	StreamFormants     = "formants"
	StreamOscilloscope = "oscilloscope"
)

// GetLogger returns the pipeline logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("pipeline")
}

// Provider is the live configuration the workers read. conf.Analysis
// implements it.
type Provider interface {
	FFTSize() int
	ViewMaxFrequency() int
	FormantCount() int
	LPOrder() int
}

// Solvers is one solver per analysis role.
type Solvers = solver.Set

// Pipeline orchestrates the analysis streams of one session.
type Pipeline struct {
	source  capture.Source
	store   *datastore.DataStore
	cfg     Provider
	solvers Solvers

	hub     *buffer.Hub
	streams []*stream

	// lifecycle
	lifeMu  sync.Mutex
	started atomic.Bool
	closed  atomic.Bool
	wg      sync.WaitGroup
	closeMu sync.Mutex
	joined  bool
	joinErr error

	// tick state, owned by the ProcessAll caller
	tickMu     sync.Mutex
	block      []float32
	controller *BlockSizeController
	lastTrim   float64
	lastLag    time.Time

	// published for Status
	timeBits  atomic.Uint64
	blockSize atomic.Int64
	backlog   atomic.Int64
	rateBits  atomic.Uint64

	joinTimeout     time.Duration
	bufferCapacity  int
	blockCfg        BlockSizeConfig
	resampleQuality string
	history         float64
	lagDiagnostics  bool
	log             logger.Logger
	recorder        metrics.Recorder
}

// New validates its collaborators and builds the streams. Every failure is
// reported here as ErrInitialization; nothing is deferred to the workers.
func New(source capture.Source, store *datastore.DataStore, cfg Provider, solvers Solvers, opts ...Option) (*Pipeline, error) {
	switch {
	case source == nil:
		return nil, initError("nil capture source")
	case store == nil:
		return nil, initError("nil data store")
	case cfg == nil:
		return nil, initError("nil configuration provider")
	case solvers.Pitch == nil || solvers.LinearPrediction == nil ||
		solvers.Formant == nil || solvers.InverseGlottal == nil:
		return nil, initError("missing solver")
	}

	rate := source.SampleRate()
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, errors.New(ErrInitialization).
			Context("reason", "invalid capture sample rate").
			Context("sample_rate", rate).
			Build()
	}
	if cfg.FFTSize() < 2 {
		return nil, errors.New(ErrInitialization).
			Context("reason", "invalid fft size").
			Context("fft_size", cfg.FFTSize()).
			Build()
	}

	p := &Pipeline{
		source:          source,
		store:           store,
		cfg:             cfg,
		solvers:         solvers,
		joinTimeout:     DefaultJoinTimeout,
		bufferCapacity:  DefaultBufferCapacity,
		blockCfg:        DefaultBlockSizeConfig(),
		resampleQuality: resample.DefaultQuality,
		log:             GetLogger(),
		recorder:        metrics.NopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.hub == nil {
		p.hub = buffer.NewHub()
	}

	controller, err := NewBlockSizeController(p.blockCfg)
	if err != nil {
		return nil, errors.New(ErrInitialization).
			Context("reason", err.Error()).
			Build()
	}
	p.controller = controller
	p.blockSize.Store(int64(controller.Size()))
	p.rateBits.Store(math.Float64bits(rate))

	var resizeErr error
	store.Update(func(w *datastore.WriteTxn) {
		if n := cfg.FormantCount(); n != w.FormantCount() {
			resizeErr = w.SetFormantCount(n)
		}
	})
	if resizeErr != nil {
		return nil, errors.New(ErrInitialization).
			Context("reason", resizeErr.Error()).
			Build()
	}

	analysers, err := p.newAnalysers(rate)
	if err != nil {
		return nil, errors.New(ErrInitialization).
			Context("reason", err.Error()).
			Build()
	}
	for _, a := range analysers {
		p.streams = append(p.streams, newStream(a, buffer.New(p.bufferCapacity,
			buffer.WithHub(p.hub), buffer.WithSampleRate(rate))))
	}
	return p, nil
}

func (p *Pipeline) newAnalysers(rate float64) ([]analyser, error) {
	spec, err := newSpectrogramAnalyser(p, rate)
	if err != nil {
		return nil, fmt.Errorf("spectrogram: %w", err)
	}
	formants, err := newFormantAnalyser(p, rate)
	if err != nil {
		return nil, fmt.Errorf("formants: %w", err)
	}
	osc, err := newOscilloscopeAnalyser(p, rate)
	if err != nil {
		return nil, fmt.Errorf("oscilloscope: %w", err)
	}
	return []analyser{spec, newPitchAnalyser(p), formants, osc}, nil
}

// ProcessAll runs one capture tick. It blocks in the capture source until a
// full block is available, so it returns io.EOF only once the source has
// ended and ErrClosed once the pipeline is closed.
func (p *Pipeline) ProcessAll(ctx context.Context) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	size := p.controller.Size()
	if cap(p.block) < size {
		p.block = make([]float32, size)
	}
	block := p.block[:size]

	n, pullErr := p.source.Pull(block)
	eof := errors.Is(pullErr, io.EOF)
	if pullErr != nil && !eof {
		if p.closed.Load() {
			return ErrClosed
		}
		return errors.New(pullErr).
			Component(ComponentPipeline).
			Category(errors.CategoryAudioSource).
			Context("operation", "capture_pull").
			Context("block_size", size).
			Build()
	}
	if p.closed.Load() {
		return ErrClosed
	}

	if n > 0 {
		p.fanOut(block[:n])
	}
	p.startWorkers()
	p.adaptBlockSize(ctx)
	p.publishCounters()

	if eof {
		return io.EOF
	}
	return nil
}

// fanOut advances the session clock and pushes block into every stream.
func (p *Pipeline) fanOut(block []float32) {
	rate := p.source.SampleRate()
	p.rateBits.Store(math.Float64bits(rate))

	now := p.Time() + float64(len(block))/rate
	p.timeBits.Store(math.Float64bits(now))

	p.store.Update(func(w *datastore.WriteTxn) {
		w.SetTime(now)
		if p.history > 0 && now-p.lastTrim >= trimInterval {
			p.lastTrim = now
			w.TrimBefore(now - p.history)
		}
	})

	for _, s := range p.streams {
		s.buf.SetSampleRate(rate)
		s.buf.Push(block, rate)
	}
}

func (p *Pipeline) startWorkers() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if p.closed.Load() {
		return
	}
	for _, s := range p.streams {
		if !s.life.start() {
			continue
		}
		p.recorder.SetStreamAlive(s.name, true)
		s.launched = true
		p.wg.Go(func() { p.run(s) })
	}
	p.log.Info("analysis workers started",
		logger.Int("streams", len(p.streams)),
		logger.Float64("sample_rate", p.SampleRate()))
}

func (p *Pipeline) adaptBlockSize(ctx context.Context) {
	backlog := p.source.Length()
	p.backlog.Store(int64(backlog))

	size, dir := p.controller.Update(backlog)
	p.blockSize.Store(int64(size))
	if dir == Hold {
		return
	}
	p.recorder.RecordBlockSizeChange(dir.String())

	if dir != Grow {
		p.log.Debug("block size reduced", logger.Int("block_size", size), logger.Int("backlog", backlog))
		return
	}

	fields := []logger.Field{
		logger.Int("block_size", size),
		logger.Int("backlog", backlog),
		logger.Float64("backlog_seconds", float64(backlog)/p.SampleRate()),
	}
	if p.lagDiagnostics && time.Since(p.lastLag) >= lagReportInterval {
		p.lastLag = time.Now()
		fields = append(fields, diagnostics.Collect(ctx).Fields()...)
	}
	p.log.Warn("analysis falling behind capture, growing block size", fields...)
}

func (p *Pipeline) publishCounters() {
	p.recorder.SetBlockSize(int(p.blockSize.Load()))
	p.recorder.SetBacklog(int(p.backlog.Load()))
	p.recorder.SetCatchupCount(p.store.CatchupCount())
	for _, s := range p.streams {
		p.recorder.SetDroppedSamples(s.name, s.buf.Dropped())
	}
}

// Close stops and joins every worker. It is idempotent; later calls return
// the result of the first.
func (p *Pipeline) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.joined {
		return p.joinErr
	}
	p.joined = true

	p.lifeMu.Lock()
	p.closed.Store(true)
	for _, s := range p.streams {
		s.life.stop()
	}
	p.hub.CancelPulls()
	p.lifeMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.joinTimeout):
		var stragglers []string
		for _, s := range p.streams {
			if s.launched && !s.exited() {
				stragglers = append(stragglers, s.name)
			}
		}
		p.log.Error("analysis workers did not stop in time",
			logger.Duration("join_timeout", p.joinTimeout),
			logger.Any("streams", stragglers))
		p.joinErr = errors.New(ErrJoinTimeout).
			Context("streams", stragglers).
			Context("join_timeout", p.joinTimeout.String()).
			Build()
	}

	for _, s := range p.streams {
		if !s.launched || s.exited() {
			s.life.join()
		}
		s.buf.Close()
	}
	p.log.Info("analysis pipeline closed", logger.Float64("session_time", p.Time()))
	return p.joinErr
}

// Time returns the session time of the last capture tick in seconds.
func (p *Pipeline) Time() float64 {
	return math.Float64frombits(p.timeBits.Load())
}

// SampleRate returns the capture rate of the last tick.
func (p *Pipeline) SampleRate() float64 {
	return math.Float64frombits(p.rateBits.Load())
}

// BlockSize returns the block size the next tick will pull.
func (p *Pipeline) BlockSize() int {
	return int(p.blockSize.Load())
}

// Drained reports whether every running stream has less than one frame
// pending, which after the source has ended means all analysable audio has
// been consumed.
func (p *Pipeline) Drained() bool {
	for _, s := range p.streams {
		if !s.life.Alive() {
			continue
		}
		need := s.frameSamples.Load()
		if need == 0 || int64(s.buf.Length()) >= need {
			return false
		}
	}
	return true
}

// Alive reports whether the named stream is running.
func (p *Pipeline) Alive(name string) bool {
	for _, s := range p.streams {
		if s.name == name {
			return s.life.Alive()
		}
	}
	return false
}
