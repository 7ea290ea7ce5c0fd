package devices

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/speechscope/internal/audiocore/sources"
	"github.com/tphakala/speechscope/internal/conf"
)

// Command lists the capture devices of the configured backend.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devs, err := sources.ListAvailableDevices(settings.Audio.Backend)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tDEFAULT\tNAME\tID")
			for _, d := range devs {
				def := ""
				if d.Default {
					def = "*"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", d.Index, def, d.Name, d.ID)
			}
			return w.Flush()
		},
	}
}
