package file

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/speechscope/internal/analysis"
	"github.com/tphakala/speechscope/internal/buildinfo"
	"github.com/tphakala/speechscope/internal/conf"
)

// Command creates a new file command for analyzing a single audio file.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "file [input.wav]",
		Short: "Analyze an audio file",
		Long:  "Analyse a single WAV file and print a summary of its pitch and formant tracks.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings.Input.Path = args[0]
			// whole-file sessions keep every frame for the summary
			settings.Pipeline.HistorySeconds = 0

			sum, err := analysis.FileAnalysis(cmd.Context(), settings, build)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}
			return analysis.WriteSummary(os.Stdout, sum)
		},
	}

	cmd.Flags().BoolVar(&settings.Input.Paced, "paced", viper.GetBool("input.paced"), "Feed the file at real-time speed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
	return cmd
}
