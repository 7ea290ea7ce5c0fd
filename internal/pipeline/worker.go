package pipeline

import (
	"fmt"
	"math"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/tphakala/speechscope/internal/audiocore/buffer"
	"github.com/tphakala/speechscope/internal/dsp"
	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/logger"
)

// analyser is the per-stream half of a worker: it sizes frames and turns one
// frame into data store writes. Analysers are owned by a single goroutine.
type analyser interface {
	name() string

	// frameLength returns the frame size in capture samples at rate.
	frameLength(rate float64) int

	// analyse processes frame, whose first sample is at session time t.
	analyse(frame []float32, rate, t float64) error
}

// stream couples an analyser with its input buffer and lifecycle.
type stream struct {
	name string
	a    analyser
	buf  *buffer.SampleBuffer
	life lifecycle

	launched bool // set under Pipeline.lifeMu before the goroutine starts
	done     atomic.Bool

	frames       atomic.Uint64
	frameSamples atomic.Int64
	timeBits     atomic.Uint64 // session time of the next frame
	timing       dsp.SmoothedTiming
}

func newStream(a analyser, buf *buffer.SampleBuffer) *stream {
	return &stream{name: a.name(), a: a, buf: buf}
}

func (s *stream) exited() bool {
	return s.done.Load()
}

// frameTime returns the session time the worker has analysed up to.
func (s *stream) frameTime() float64 {
	return math.Float64frombits(s.timeBits.Load())
}

// run is the worker loop. It returns when the hub is cancelled, the buffer is
// closed or the analyser fails.
func (p *Pipeline) run(s *stream) {
	defer s.done.Store(true)
	defer func() {
		if r := recover(); r != nil {
			p.fail(s, errors.New(ErrWorkerPanic).
				Context("panic", fmt.Sprint(r)).
				Context("stack", string(debug.Stack())).
				Build())
		}
	}()

	log := p.log.With(logger.String("stream", s.name))
	log.Debug("analysis worker started")

	var (
		frame []float32
		t     float64
	)
	for {
		rate := s.buf.SampleRate()
		n := s.a.frameLength(rate)
		s.frameSamples.Store(int64(n))
		if n < 1 || n > s.buf.Capacity() {
			p.fail(s, errors.Newf("frame of %d samples does not fit the stream buffer", n).
				Component(ComponentPipeline).
				Category(errors.CategoryBuffer).
				Context("capacity", s.buf.Capacity()).
				Context("sample_rate", rate).
				Build())
			return
		}
		if cap(frame) < n {
			frame = make([]float32, n)
		}
		frame = frame[:n]

		if err := s.buf.Pull(frame); err != nil {
			if errors.Is(err, buffer.ErrPullCancelled) {
				s.life.stop()
				log.Debug("analysis worker stopping", logger.Uint64("frames", s.frames.Load()))
				return
			}
			p.fail(s, err)
			return
		}

		start := time.Now()
		if err := s.a.analyse(frame, rate, t); err != nil {
			p.fail(s, err)
			return
		}
		elapsed := time.Since(start)
		s.timing.Observe(elapsed)

		t += float64(n) / rate
		s.timeBits.Store(math.Float64bits(t))
		s.frames.Add(1)
		p.recorder.RecordFrame(s.name)
		p.recorder.RecordStageDuration(s.name, elapsed.Seconds())
	}
}

// fail ends s with err. The rest of the pipeline keeps running.
func (p *Pipeline) fail(s *stream, err error) {
	b := errors.New(err).
		Priority(errors.PriorityHigh).
		Context("stream", s.name).
		Context("frames", s.frames.Load())
	var ee *errors.EnhancedError
	if !errors.As(err, &ee) {
		b = b.Component(ComponentPipeline).Category(errors.CategoryWorker)
	}
	enhanced := b.Build()

	if !s.life.fail(enhanced) {
		return
	}
	p.log.Error("analysis stream failed",
		logger.String("stream", s.name),
		logger.Error(enhanced),
		logger.String("category", enhanced.GetCategory()),
		logger.Uint64("frames", s.frames.Load()))
	p.recorder.RecordStreamError(s.name, enhanced.GetCategory())
	p.recorder.SetStreamAlive(s.name, false)
}

// noteRewind reports track entries a stream overwrote because its timestamps
// moved backwards, as happens when a view range change alters the resampler
// delay. before and after are the track's Discarded counts around the insert.
func (p *Pipeline) noteRewind(stream string, before, after uint64) {
	if after <= before {
		return
	}
	n := after - before
	p.recorder.RecordRewind(stream, n)
	p.log.Warn("track rewound, overwrote entries",
		logger.String("stream", stream),
		logger.Uint64("entries", n))
}

// frameSamples converts a duration in seconds into a sample count at rate.
func frameSamples(seconds, rate float64) int {
	return max(1, int(math.Round(seconds*rate)))
}
