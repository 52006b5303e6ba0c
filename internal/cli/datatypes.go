package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/veranemoloko/vision-downloader/internal/catalog"
)

func newDataTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "datatypes",
		Short: "Print the data types the archive publishes",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tMARKETS\tINTERVALS\tMONTHLY\tDAILY")
			for _, dt := range catalog.DataTypes() {
				markets := make([]string, len(dt.Markets))
				for i, m := range dt.Markets {
					markets[i] = string(m)
				}
				fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%t\n",
					dt.Name, strings.Join(markets, ","), dt.Intervals, dt.Monthly, dt.Daily)
			}
			return tw.Flush()
		},
	}
}
