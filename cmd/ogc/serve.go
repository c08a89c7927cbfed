package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KevinKickass/OpenGCodeCore/internal/system"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(c *cli) *cobra.Command {
	var definition string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the device and serve the REST, WebSocket and gRPC health APIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if definition != "" {
				c.cfg.Machine.Definition = definition
			}

			logger, err := newLogger(c.cfg.Logging)
			if err != nil {
				return err
			}
			defer logger.Sync()

			lifecycle, err := system.NewLifecycleManager(c.cfg, logger)
			if err != nil {
				return err
			}

			// System starten
			if err := lifecycle.Start(cmd.Context()); err != nil {
				logger.Error("Failed to start system", zap.Error(err))
				shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Server.ShutdownTimeout)
				defer cancel()
				lifecycle.Shutdown(shutdownCtx)
				return fmt.Errorf("start failed: %w", err)
			}

			logger.Info("OpenGCodeCore started successfully")

			// Graceful Shutdown auf Signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			sig := <-sigChan
			logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := lifecycle.Shutdown(ctx); err != nil {
				logger.Error("Shutdown failed", zap.Error(err))
				return err
			}

			logger.Info("OpenGCodeCore stopped successfully")
			return nil
		},
	}

	cmd.Flags().StringVarP(&definition, "machine", "m", "", "machine definition (overrides machine.definition)")
	return cmd
}
