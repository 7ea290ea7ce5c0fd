package realtime

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/speechscope/internal/analysis"
	"github.com/tphakala/speechscope/internal/buildinfo"
	"github.com/tphakala/speechscope/internal/conf"
)

// Command creates a new command for real-time audio analysis.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Analyze audio in realtime mode",
		Long:  "Capture from a sound card and analyse it until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.RealtimeAnalysis(cmd.Context(), settings, build)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}
	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Audio.Source, "source", viper.GetString("audio.source"), "Audio capture source (\"sysdefault\", \"USB Audio\", device ID, etc.)")
	cmd.Flags().StringVar(&settings.Audio.Backend, "backend", viper.GetString("audio.backend"), "Audio backend override (alsa, pulse, wasapi, coreaudio)")
	cmd.Flags().IntVar(&settings.Audio.SampleRate, "samplerate", viper.GetInt("audio.samplerate"), "Requested capture sample rate in Hz")
	cmd.Flags().Float64Var(&settings.Pipeline.HistorySeconds, "history", viper.GetFloat64("pipeline.historyseconds"), "Seconds of tracks to keep, 0 keeps everything")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}
	return nil
}
