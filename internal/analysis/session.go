package analysis

import (
	"context"
	"io"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/speechscope/internal/audiocore/capture"
	"github.com/tphakala/speechscope/internal/audiocore/sources"
	"github.com/tphakala/speechscope/internal/audiocore/sources/file"
	"github.com/tphakala/speechscope/internal/buildinfo"
	"github.com/tphakala/speechscope/internal/conf"
	"github.com/tphakala/speechscope/internal/datastore"
	"github.com/tphakala/speechscope/internal/errors"
	"github.com/tphakala/speechscope/internal/httpserver"
	"github.com/tphakala/speechscope/internal/logger"
	"github.com/tphakala/speechscope/internal/observability"
	"github.com/tphakala/speechscope/internal/pipeline"
	"github.com/tphakala/speechscope/internal/solver"
)

const (
	drainPollInterval = 10 * time.Millisecond
	minDrainTimeout   = 10 * time.Second
	sentryFlushTime   = 2 * time.Second
)

// Session owns every component of one analysis run.
type Session struct {
	settings *conf.Settings
	build    *buildinfo.Context
	log      logger.Logger

	analysis *conf.Analysis
	store    *datastore.DataStore
	capture  *capture.Buffer
	producer sources.Producer
	pipeline *pipeline.Pipeline
	metrics  *observability.Metrics

	newProducer func(target capture.Writer) (sources.Producer, error)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithBuildInfo sets the version reported to error telemetry.
func WithBuildInfo(b *buildinfo.Context) SessionOption {
	return func(s *Session) { s.build = b }
}

// WithProducer replaces the producer normally created from settings. The
// producer must write into the session's capture buffer, see Capture.
func WithProducer(ctor func(target capture.Writer) (sources.Producer, error)) SessionOption {
	return func(s *Session) { s.newProducer = ctor }
}

// NewSession builds the capture buffer, producer, data store, solvers,
// metrics and pipeline for settings. Nothing runs until Run.
func NewSession(settings *conf.Settings, kind sources.Kind, opts ...SessionOption) (*Session, error) {
	if settings == nil {
		return nil, errors.New(errors.NewStd("nil settings")).
			Component(ComponentAnalysis).
			Category(errors.CategoryConfiguration).
			Build()
	}

	s := &Session{
		settings: settings,
		log:      GetLogger(),
		analysis: conf.NewAnalysis(settings),
	}
	s.newProducer = func(target capture.Writer) (sources.Producer, error) {
		return sources.CreateSource(kind, settings, target)
	}
	for _, opt := range opts {
		opt(s)
	}

	rate, err := captureRate(settings, kind)
	if err != nil {
		return nil, err
	}
	capacity := max(int(math.Ceil(settings.Audio.BufferSecs*rate)), settings.Pipeline.BlockSize.Max)
	s.capture = capture.NewBuffer(capacity, rate)

	if s.producer, err = s.newProducer(s.capture); err != nil {
		s.capture.Close()
		return nil, err
	}

	if s.store, err = datastore.New(s.analysis.FormantCount()); err != nil {
		s.capture.Close()
		return nil, err
	}

	solvers, err := solver.DefaultRegistry().NewSet(solver.Selection{
		Pitch:            s.analysis.PitchAlgorithm(),
		LinearPrediction: s.analysis.LinearPredictionAlgorithm(),
		Formant:          s.analysis.FormantAlgorithm(),
		InverseGlottal:   s.analysis.InverseGlottalAlgorithm(),
	})
	if err != nil {
		s.capture.Close()
		return nil, err
	}

	if s.metrics, err = observability.NewMetrics(); err != nil {
		s.capture.Close()
		return nil, errors.New(err).
			Component(ComponentAnalysis).
			Category(errors.CategorySystem).
			Context("operation", "metrics_init").
			Build()
	}

	ps := settings.Pipeline
	s.pipeline, err = pipeline.New(s.capture, s.store, s.analysis, solvers,
		pipeline.WithRecorder(s.metrics.Pipeline),
		pipeline.WithBlockSize(pipeline.BlockSizeConfig(ps.BlockSize)),
		pipeline.WithBufferCapacity(ps.BufferSamples),
		pipeline.WithJoinTimeout(ps.JoinTimeout),
		pipeline.WithHistory(ps.HistorySeconds),
		pipeline.WithResampleQuality(ps.ResampleQuality),
		pipeline.WithLagDiagnostics(settings.Debug),
	)
	if err != nil {
		s.capture.Close()
		return nil, err
	}

	s.log.Info("analysis session created",
		logger.String("session_id", s.store.SessionID().String()),
		logger.String("source", string(kind)),
		logger.Float64("sample_rate", rate),
		logger.Int("capture_capacity", capacity),
		logger.Int("formants", s.analysis.FormantCount()),
		logger.String("pitch_algorithm", s.analysis.PitchAlgorithm()),
		logger.String("formant_algorithm", s.analysis.FormantAlgorithm()))
	return s, nil
}

// captureRate is the rate the capture buffer is sized for: the file's own
// rate for offline input, the requested device rate otherwise.
func captureRate(settings *conf.Settings, kind sources.Kind) (float64, error) {
	if kind == sources.KindFile {
		if settings.Input.Path == "" {
			return 0, ErrNoInput
		}
		info, err := file.ReadInfo(settings.Input.Path)
		if err != nil {
			return 0, err
		}
		return float64(info.SampleRate), nil
	}
	return float64(settings.Audio.SampleRate), nil
}

// Store returns the session's data store.
func (s *Session) Store() *datastore.DataStore { return s.store }

// Pipeline returns the session's pipeline.
func (s *Session) Pipeline() *pipeline.Pipeline { return s.pipeline }

// Capture returns the buffer producers write into.
func (s *Session) Capture() *capture.Buffer { return s.capture }

// Metrics returns the session's metric collectors.
func (s *Session) Metrics() *observability.Metrics { return s.metrics }

// Analysis returns the live analysis settings.
func (s *Session) Analysis() *conf.Analysis { return s.analysis }

// Run starts the producer and the enabled HTTP surfaces, then drives the
// pipeline until the input ends or ctx is cancelled. Every component is
// stopped before Run returns.
func (s *Session) Run(ctx context.Context) error {
	if s.settings.Sentry.Enabled {
		if err := errors.InitSentry(s.settings.Sentry.DSN, s.build.Release(), s.store.SessionID().String()); err != nil {
			s.log.Warn("error telemetry disabled", logger.Error(err))
		} else {
			defer errors.FlushSentry(sentryFlushTime)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if s.settings.Telemetry.Enabled {
		endpoint := observability.NewEndpoint(s.settings.Telemetry.Listen, s.metrics)
		g.Go(func() error { return endpoint.Run(gctx) })
	}
	if s.settings.WebServer.Enabled {
		server := httpserver.New(s.settings.WebServer.Listen, s.store, s.analysis,
			httpserver.WithStatus(s.pipeline),
			httpserver.WithMetrics(s.metrics))
		g.Go(func() error { return server.Run(gctx) })
	}

	if err := s.producer.Start(gctx); err != nil {
		cancel()
		_ = g.Wait()
		_ = s.shutdown()
		return err
	}

	// a blocked capture pull does not watch the context
	stopUnblock := context.AfterFunc(gctx, s.capture.Close)
	defer stopUnblock()

	g.Go(func() error {
		defer cancel()
		return s.process(gctx)
	})

	err := g.Wait()
	if shutdownErr := s.shutdown(); err == nil {
		err = shutdownErr
	}
	s.logSummary()
	return err
}

// process is the capture loop.
func (s *Session) process(ctx context.Context) error {
	for {
		err := s.pipeline.ProcessAll(ctx)
		s.metrics.Pipeline.SetDroppedSamples("capture", s.capture.Dropped())
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			s.log.Info("input finished, draining workers")
			return s.waitDrained(ctx)
		case ctx.Err() != nil:
			return nil
		default:
			s.log.Error("capture loop stopped", logger.Error(err))
			return err
		}
	}
}

// waitDrained waits until every live worker has consumed its buffered input.
func (s *Session) waitDrained(ctx context.Context) error {
	deadline := time.NewTimer(max(s.settings.Pipeline.JoinTimeout, minDrainTimeout))
	defer deadline.Stop()
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for !s.pipeline.Drained() {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			return ErrDrainTimeout
		case <-ticker.C:
		}
	}
	return nil
}

func (s *Session) shutdown() error {
	if err := s.producer.Stop(); err != nil {
		s.log.Warn("producer stopped with error", logger.Error(err))
	}
	s.capture.Close()
	return s.pipeline.Close()
}

func (s *Session) logSummary() {
	st := s.pipeline.Status()
	fields := []logger.Field{
		logger.String("session_id", s.store.SessionID().String()),
		logger.Float64("time", st.Time),
		logger.Uint64("writes", s.store.WriteCount()),
		logger.Uint64("capture_dropped", s.capture.Dropped()),
	}
	for _, stream := range st.Streams {
		fields = append(fields, logger.Uint64(stream.Name+"_frames", stream.Frames))
	}
	s.log.Info("analysis session finished", fields...)
}
