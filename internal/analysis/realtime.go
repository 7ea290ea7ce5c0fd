package analysis

import (
	"context"

	"github.com/tphakala/speechscope/internal/audiocore/sources"
	"github.com/tphakala/speechscope/internal/buildinfo"
	"github.com/tphakala/speechscope/internal/conf"
	"github.com/tphakala/speechscope/internal/diagnostics"
	"github.com/tphakala/speechscope/internal/logger"
)

// RealtimeAnalysis analyses the configured sound card until ctx is cancelled.
func RealtimeAnalysis(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	log := GetLogger()
	log.Info("system details", diagnostics.DescribeSystem(ctx).Fields()...)

	session, err := NewSession(settings, sources.KindSoundCard, WithBuildInfo(build))
	if err != nil {
		return err
	}

	fields := []logger.Field{
		logger.String("source", settings.Audio.Source),
		logger.Int("sample_rate", settings.Audio.SampleRate),
		logger.Int("fft_size", settings.View.FFTSize),
		logger.Int("max_frequency", settings.View.MaxFrequency),
	}
	if settings.WebServer.Enabled {
		fields = append(fields, logger.String("web_listen", settings.WebServer.Listen))
	}
	if settings.Telemetry.Enabled {
		fields = append(fields, logger.String("telemetry_listen", settings.Telemetry.Listen))
	}
	log.Info("starting realtime analysis", fields...)

	return session.Run(ctx)
}
