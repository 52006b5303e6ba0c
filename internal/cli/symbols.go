package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veranemoloko/vision-downloader/internal/domain"
	"github.com/veranemoloko/vision-downloader/internal/symbols"
	"github.com/veranemoloko/vision-downloader/internal/worker"
)

func newSymbolsCmd(a *app) *cobra.Command {
	var market string

	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List symbols the exchange reports for a market",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := domain.Market(market)
			if !m.Valid() {
				return fmt.Errorf("unknown market %q", market)
			}
			if err := a.load(); err != nil {
				return err
			}

			provider := symbols.NewProvider(symbols.Endpoints{
				Spot:     a.cfg.SpotAPIURL,
				Futures:  a.cfg.FuturesAPIURL,
				Delivery: a.cfg.DeliveryAPIURL,
			}, worker.NewHTTPClient(a.cfg.ConnectTimeout, 1))

			list, err := provider.List(cmd.Context(), m)
			if err != nil {
				return err
			}
			for _, s := range list {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&market, "market", "", "market: spot, um or cm")
	_ = cmd.MarkFlagRequired("market")
	return cmd
}
