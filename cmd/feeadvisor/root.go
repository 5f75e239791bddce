package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fd1az/fee-advisor/internal/config"
	"github.com/fd1az/fee-advisor/internal/logger"
)

// cli holds state shared by subcommands once PersistentPreRunE has run.
type cli struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "feeadvisor",
		Short:         "Compare gas, route and bridge quotes and recommend when and how to trade",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.load()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override log level defined in config")

	root.AddCommand(
		newRecommendCmd(c),
		newHealthCmd(c),
		newServeCmd(c),
		newVersionCmd(),
	)
	return root
}

func (c *cli) load() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.App.LogLevel = c.logLevel
	}

	c.cfg = cfg
	c.log = logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	return nil
}
