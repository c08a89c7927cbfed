package main

import (
	"fmt"

	"github.com/KevinKickass/OpenGCodeCore/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli carries what every subcommand shares.
type cli struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "ogc",
		Short: "OpenGCodeCore controls G-code devices through tracked machine state",
		Long: `OpenGCodeCore keeps a model of the machine state, validates every instruction
against it before sending, and exposes components and composite functions
defined in a machine definition file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (defaults and OGC_ environment when empty)")

	root.AddCommand(
		newServeCmd(c),
		newValidateCmd(c),
		newEncodeCmd(c),
		newTokenCmd(c),
	)
	return root
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zc.Level = level
	}
	return zc.Build()
}
