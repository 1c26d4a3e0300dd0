package main

import (
	"context"
	"errors"
	"os"

	"github.com/mohammad-safakhou/conflictcast/internal/app"
	"github.com/mohammad-safakhou/conflictcast/internal/orchestrator"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func predictCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "predict",
		Short: "Run the interactive country comparison",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, *cfgPath)
		},
	}
}

func runPredict(cmd *cobra.Command, cfgPath string) error {
	ctx := cmd.Context()
	cfg, logger, err := load(cfgPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(ctx, cfg, logger, app.Options{TraceOutput: os.Stderr})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	sess, err := a.Sessions.EnsureSession(ctx, "", cfg.Session.TTL)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	markdown := false
	if f, ok := out.(*os.File); ok {
		if fi, err := f.Stat(); err == nil {
			markdown = fi.Mode()&os.ModeCharDevice != 0
		}
	}
	o, err := a.NewOrchestrator(sess, orchestrator.NewConsole(out, markdown))
	if err != nil {
		return err
	}
	defer o.Close()

	logger.Info("conversation started", zap.String("session", sess.ID()))
	err = o.Conversation(ctx, cmd.InOrStdin())
	if errors.Is(err, context.Canceled) {
		logger.Info("conversation interrupted", zap.String("session", sess.ID()))
		return nil
	}
	return err
}
