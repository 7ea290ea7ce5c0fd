// Package cmd defines the speechscope command line interface.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/speechscope/cmd/config"
	"github.com/tphakala/speechscope/cmd/devices"
	"github.com/tphakala/speechscope/cmd/file"
	"github.com/tphakala/speechscope/cmd/realtime"
	"github.com/tphakala/speechscope/internal/buildinfo"
	"github.com/tphakala/speechscope/internal/conf"
	"github.com/tphakala/speechscope/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "speechscope",
		Short:         "Real-time speech analysis",
		Long:          "Analyse speech from a sound card or WAV file: spectrogram, pitch, formants and glottal flow.",
		Version:       fmt.Sprintf("%s (built %s)", build.GetVersion(), build.GetBuildDate()),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	devicesCmd := devices.Command(settings)
	configCmd := config.Command(settings)
	rootCmd.AddCommand(
		realtime.Command(settings, build),
		file.Command(settings, build),
		devicesCmd,
		configCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// listing devices and printing settings need no logger
		if cmd.Name() == devicesCmd.Name() || cmd.Name() == configCmd.Name() {
			return nil
		}
		return initialize(settings)
	}
	rootCmd.PersistentPostRun = func(*cobra.Command, []string) {
		_ = logger.Global().Close()
	}

	return rootCmd
}

// initialize validates settings after flags were applied and installs the
// configured logger.
func initialize(settings *conf.Settings) error {
	if err := conf.ValidateSettings(settings); err != nil {
		return err
	}

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	flags.StringVar(&settings.Analysis.PitchAlgorithm, "pitch", viper.GetString("analysis.pitchalgorithm"), "Pitch algorithm (autocorrelation, amdf, spectral)")
	flags.StringVar(&settings.Analysis.FormantAlgorithm, "formant", viper.GetString("analysis.formantalgorithm"), "Formant algorithm (lpc-roots, spectral-peaks)")
	flags.StringVar(&settings.Analysis.LinpredAlgorithm, "linpred", viper.GetString("analysis.linpredalgorithm"), "Linear prediction algorithm (autocorrelation, burg)")
	flags.IntVar(&settings.Analysis.LPOrder, "lporder", viper.GetInt("analysis.lporder"), "Linear prediction order")
	flags.IntVar(&settings.View.FFTSize, "fftsize", viper.GetInt("view.fftsize"), "Spectrogram FFT size, power of two")
	flags.IntVar(&settings.View.MaxFrequency, "maxfreq", viper.GetInt("view.maxfrequency"), "Highest displayed frequency in Hz")
	flags.IntVar(&settings.View.FormantCount, "formants", viper.GetInt("view.formantcount"), "Number of formants to track")
	flags.StringVar(&settings.View.FrequencyScale, "scale", viper.GetString("view.frequencyscale"),
		"Spectrogram frequency scale ("+strings.Join([]string{"linear", "log", "mel", "erb"}, ", ")+")")
	flags.BoolVar(&settings.WebServer.Enabled, "web", viper.GetBool("webserver.enabled"), "Serve the HTTP read API")
	flags.StringVar(&settings.WebServer.Listen, "web-listen", viper.GetString("webserver.listen"), "Listen address of the HTTP read API")
	flags.BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	flags.StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	if err := viper.BindPFlags(flags); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}
	return nil
}
