// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default analysis constants shared with the pipeline.
const (
	DefaultPitchAlgorithm   = "autocorrelation"
	DefaultLinpredAlgorithm = "autocorrelation"
	DefaultFormantAlgorithm = "lpc-roots"
	DefaultInvglotAlgorithm = "iaif"
	DefaultFormantCount     = 4
	MaxFormantCount         = 8
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/speechscope.log")
	viper.SetDefault("logging.file_output.level", "info")

	viper.SetDefault("audio.source", "sysdefault")
	viper.SetDefault("audio.backend", "")
	viper.SetDefault("audio.samplerate", 48000)
	viper.SetDefault("audio.buffersecs", 2.0)

	viper.SetDefault("input.path", "")
	viper.SetDefault("input.paced", false)

	viper.SetDefault("analysis.pitchalgorithm", DefaultPitchAlgorithm)
	viper.SetDefault("analysis.linpredalgorithm", DefaultLinpredAlgorithm)
	viper.SetDefault("analysis.formantalgorithm", DefaultFormantAlgorithm)
	viper.SetDefault("analysis.invglotalgorithm", DefaultInvglotAlgorithm)
	viper.SetDefault("analysis.lporder", 10)

	viper.SetDefault("view.minfrequency", 60)
	viper.SetDefault("view.maxfrequency", 4000)
	viper.SetDefault("view.fftsize", 1024)
	viper.SetDefault("view.mingain", -60.0)
	viper.SetDefault("view.maxgain", 0.0)
	viper.SetDefault("view.frequencyscale", "mel")
	viper.SetDefault("view.formantcount", DefaultFormantCount)

	viper.SetDefault("pipeline.blocksize.initial", 512)
	viper.SetDefault("pipeline.blocksize.min", 256)
	viper.SetDefault("pipeline.blocksize.max", 16384)
	viper.SetDefault("pipeline.blocksize.step", 128)
	viper.SetDefault("pipeline.blocksize.growthreshold", 8192)
	viper.SetDefault("pipeline.blocksize.shrinkthreshold", 1024)
	viper.SetDefault("pipeline.buffersamples", 16000)
	viper.SetDefault("pipeline.jointimeout", 2*time.Second)
	viper.SetDefault("pipeline.historyseconds", 30.0)
	viper.SetDefault("pipeline.resamplequality", "low")

	viper.SetDefault("webserver.enabled", false)
	viper.SetDefault("webserver.listen", "127.0.0.1:8086")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "127.0.0.1:8090")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
