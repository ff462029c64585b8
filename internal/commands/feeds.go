package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledgerfeed/internal/config"
)

func newFeedsCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "List configured feeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSOURCE\tDESTINATION\tDATE COLUMN\tMETADATA ROWS\tARCHIVE")
			for _, f := range cfg.Feeds {
				fmt.Fprintf(tw, "%s\t%s:%s\t%s:%s\t%s\t%d\t%s\n",
					f.DisplayName(),
					cfg.FileStoreFor(f), f.Source,
					cfg.TableStoreFor(f), f.Table,
					f.DateColumn,
					f.MetadataRows,
					f.Archive,
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", DefaultConfigFile, "config file")

	return cmd
}
