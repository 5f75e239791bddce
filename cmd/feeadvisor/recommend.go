package main

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	advisorDI "github.com/fd1az/fee-advisor/business/advisor/di"
	quotesDomain "github.com/fd1az/fee-advisor/business/quotes/domain"
)

type recommendFlags struct {
	req       quotesDomain.TradeRequest
	priority  string
	nativeUSD string
	asJSON    bool
}

func newRecommendCmd(c *cli) *cobra.Command {
	f := &recommendFlags{}

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Analyze current quotes and recommend execute_now, wait or use_bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			mono, err := bootstrap(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer mono.Close()

			services := mono.Services()
			price, err := advisorDI.GetPriceOracle(services).Price(ctx)
			if err != nil {
				return err
			}
			if f.nativeUSD != "" {
				if price.NativeToUSD, err = decimal.NewFromString(f.nativeUSD); err != nil {
					return fmt.Errorf("invalid --native-usd: %w", err)
				}
			}

			f.req.PriorityTier = quotesDomain.PriorityTier(f.priority)
			rec, err := advisorDI.GetEngine(services).Recommend(ctx, f.req, price)

			if f.asJSON {
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}

			reporter := advisorDI.GetReporter(services)
			if err != nil {
				reporter.ReportError(err)
				return err
			}
			reporter.Report(rec)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.req.FromTokenID, "from", "", "Source token address")
	fl.StringVar(&f.req.ToTokenID, "to", "", "Destination token address")
	fl.StringVar(&f.req.Amount, "amount", "", "Amount in the source token's smallest unit")
	fl.StringVar(&f.req.SourceChain, "chain", "ethereum", "Source chain name or id")
	fl.StringVar(&f.req.DestinationChain, "dest-chain", "", "Destination chain; enables bridge quotes when different from --chain")
	fl.StringVar(&f.req.UserAddress, "address", "", "Sender address")
	fl.IntVar(&f.req.SlippageToleranceBps, "slippage-bps", 50, "Slippage tolerance in basis points")
	fl.StringVar(&f.priority, "priority", string(quotesDomain.PriorityStandard), "Priority tier: fast, standard or economy")
	fl.StringVar(&f.nativeUSD, "native-usd", "", "Override the configured native token USD price")
	fl.BoolVar(&f.asJSON, "json", false, "Print the recommendation as JSON")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("amount")

	return cmd
}
