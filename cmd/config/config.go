package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/speechscope/internal/conf"
)

// Command prints the effective settings, after config file and flags, as
// YAML that can be saved as config.yaml.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := Render(settings)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}
}

// Render encodes settings as YAML. Keys are the lowercased field names viper
// reads back.
func Render(settings *conf.Settings) ([]byte, error) {
	out, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("error encoding settings: %w", err)
	}
	return out, nil
}
