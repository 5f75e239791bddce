package main

import (
	"github.com/spf13/cobra"

	advisorDI "github.com/fd1az/fee-advisor/business/advisor/di"
	quotesDI "github.com/fd1az/fee-advisor/business/quotes/di"
)

func newHealthCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe every configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			mono, err := bootstrap(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer mono.Close()

			status := quotesDI.GetAggregator(mono.Services()).CheckHealth(ctx)
			advisorDI.GetReporter(mono.Services()).ReportHealth(status)
			return nil
		},
	}
}
