package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammad-safakhou/conflictcast/config"
	"github.com/mohammad-safakhou/conflictcast/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := rootCMD()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func rootCMD() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "conflictcast",
		Short:         "Compare two countries and predict the outcome of a hypothetical conflict",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, cfgPath)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.{json,yaml})")

	root.AddCommand(predictCMD(&cfgPath), serveCMD(&cfgPath), migrateCMD(&cfgPath), reportsCMD(&cfgPath))
	return root
}

// load reads the configuration and builds the process logger.
func load(cfgPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.General.LogLevel, cfg.General.Debug)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
