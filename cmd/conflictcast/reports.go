package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/conflictcast/internal/app"
	"github.com/mohammad-safakhou/conflictcast/internal/report"
	"github.com/spf13/cobra"
)

func reportsCMD(cfgPath *string) *cobra.Command {
	reports := &cobra.Command{
		Use:   "reports",
		Short: "Browse saved reports",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *cfgPath, func(ctx context.Context, a *app.App) error {
				entries, err := a.Catalog().ListReports(ctx, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "no reports")
					return nil
				}
				for _, e := range entries {
					fmt.Fprintf(out, "%s\t%s\t%s\n", e.Name, e.CreatedAt.Format(time.RFC3339), e.UserQuery)
				}
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of reports (0 = all)")

	var asJSON bool
	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Print one saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *cfgPath, func(ctx context.Context, a *app.App) error {
				r, err := a.Catalog().GetReport(ctx, args[0])
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				if asJSON {
					b, err := report.MarshalJSON(r)
					if err != nil {
						return err
					}
					_, err = cmd.OutOrStdout().Write(append(b, '\n'))
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), report.RenderText(r))
				return err
			})
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "print the JSON document instead of the text report")

	reports.AddCommand(list, show)
	return reports
}

// withApp runs fn against an app built from the config at cfgPath.
func withApp(cmd *cobra.Command, cfgPath string, fn func(context.Context, *app.App) error) error {
	ctx := cmd.Context()
	cfg, logger, err := load(cfgPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()
	return fn(ctx, a)
}
