package pipeline

import (
	"time"

	"github.com/tphakala/speechscope/internal/audiocore/buffer"
	"github.com/tphakala/speechscope/internal/logger"
	"github.com/tphakala/speechscope/internal/observability/metrics"
)

// Defaults for pipeline options.
const (
	DefaultJoinTimeout    = 2 * time.Second
	DefaultBufferCapacity = 16000
	lagReportInterval     = 30 * time.Second
	trimInterval          = 1.0 // seconds of virtual time between history trims
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithJoinTimeout bounds how long Close waits for workers to exit.
func WithJoinTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.joinTimeout = d
		}
	}
}

// WithLogger replaces the module logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithRecorder reports metrics through r.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithBufferCapacity sets the capacity of each per-stream sample buffer.
func WithBufferCapacity(samples int) Option {
	return func(p *Pipeline) {
		if samples > 0 {
			p.bufferCapacity = samples
		}
	}
}

// WithBlockSize tunes the capture block size controller.
func WithBlockSize(cfg BlockSizeConfig) Option {
	return func(p *Pipeline) { p.blockCfg = cfg }
}

// WithResampleQuality selects the resampler preset for every stream.
func WithResampleQuality(quality string) Option {
	return func(p *Pipeline) { p.resampleQuality = quality }
}

// WithHistory trims every track to the last seconds of virtual time. Zero
// keeps the whole session.
func WithHistory(seconds float64) Option {
	return func(p *Pipeline) {
		if seconds >= 0 {
			p.history = seconds
		}
	}
}

// WithHub registers the per-stream buffers on h instead of a private hub.
// Sharing a hub means cancelling it tears down every pipeline on it.
func WithHub(h *buffer.Hub) Option {
	return func(p *Pipeline) {
		if h != nil {
			p.hub = h
		}
	}
}

// WithLagDiagnostics enables host snapshots in falling-behind warnings.
func WithLagDiagnostics(enabled bool) Option {
	return func(p *Pipeline) { p.lagDiagnostics = enabled }
}
