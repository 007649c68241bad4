package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fatflowers/storepay/internal/app/service/reconcile"
)

func reconcileCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one sweep over stale pending transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, s services) error {
				report, err := s.Reconcile.Sweep(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func repairStatusesCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "repair-statuses",
		Short: "Rewrite stored status values to their canonical uppercase form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, s services) error {
				report, err := s.Reconcile.RepairStatuses(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func archiveOrderCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "archive-order <order-id>",
		Short: "Archive an order so it accepts no further payments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, s services) error {
				o, err := s.Orders.Archive(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), o)
			})
		},
	}
}

func overrideCmd(run runner) *cobra.Command {
	var operator, reason string
	cmd := &cobra.Command{
		Use:   "override <transaction-id> <status>",
		Short: "Force a transaction into a status, including out of a terminal one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, s services) error {
				res, err := s.Reconcile.Override(ctx, &reconcile.OverrideRequest{
					TransactionID: args[0],
					Status:        args[1],
					Operator:      operator,
					Reason:        reason,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "", "Who is making the change")
	cmd.Flags().StringVar(&reason, "reason", "", "Why the change is made")
	_ = cmd.MarkFlagRequired("operator")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}
