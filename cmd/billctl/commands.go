package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/craigrbailey/BillPilot-sub000/internal/app"
	"github.com/craigrbailey/BillPilot-sub000/internal/config"
	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
	"github.com/craigrbailey/BillPilot-sub000/internal/repository/postgres"
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "billctl",
		Short:         "BillPilot operator commands",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(runJobCmd())
	root.AddCommand(checkRecurringCmd())
	return root
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadCLI()
			if err != nil {
				return err
			}
			if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func runJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-job <" + strings.Join(jobNames(), "|") + ">",
		Short: "Run one notification job now and print its batch report",
		Long: `Run one notification job immediately, outside the schedule.

The job is guarded the same way as a scheduled firing: a run that overlaps
one in this process fails instead of starting twice.

Examples:
  billctl run-job BILL_DUE
  billctl run-job monthly_summary`,
		Args: jobArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, _ := domain.ParseNotificationType(args[0])
			return withApp(cmd.Context(), func(a *app.App) error {
				report, err := a.Scheduler.RunJob(cmd.Context(), job, time.Now())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func checkRecurringCmd() *cobra.Command {
	var ownerID int32

	cmd := &cobra.Command{
		Use:   "check-recurring",
		Short: "Generate missing occurrences up to the horizon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ownerID < 0 {
				return fmt.Errorf("--owner must be positive")
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				var result *domain.GenerationResult
				var err error
				if ownerID > 0 {
					result, err = a.Templates.CheckRecurring(cmd.Context(), ownerID)
				} else {
					result, err = a.Templates.CheckAllRecurring(cmd.Context())
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().Int32Var(&ownerID, "owner", 0, "limit the pass to one owner (default all owners)")
	return cmd
}

// jobArg accepts exactly one known notification type in any casing
func jobArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	_, err := domain.ParseNotificationType(args[0])
	return err
}

func jobNames() []string {
	names := make([]string, len(domain.NotificationTypes))
	for i, t := range domain.NotificationTypes {
		names[i] = string(t)
	}
	return names
}

func withApp(ctx context.Context, fn func(a *app.App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.LoadCLI()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
