package cli

import (
	"context"
	"fmt"

	"clinic-app-server/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// withApp runs fn against a freshly wired app and closes it afterwards.
func withApp(cmd *cobra.Command, withServices bool, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, withServices)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				if err := models.Migrate(a.db.WithContext(ctx)); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				a.log.Info("database migrated", zap.String("driver", a.cfg.Database.Driver))
				return nil
			})
		},
	}
}

func seedRankFeesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-rank-fees",
		Short: "Insert the default consultation fee of every doctor rank when none exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				created, err := a.pricing.SeedRankFees(ctx)
				if err != nil {
					return fmt.Errorf("seed rank fees: %w", err)
				}
				if created == 0 {
					cmd.Println("Rank fees already present, nothing to do.")
					return nil
				}
				cmd.Printf("Created %d rank fee(s).\n", created)
				return nil
			})
		},
	}
}

func recomputeInvoicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-invoices",
		Short: "Recompute subtotal and amount due of every invoice from its items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				n, err := a.billing.RecomputeAll(ctx)
				if err != nil {
					return fmt.Errorf("recompute invoices: %w", err)
				}
				cmd.Printf("Recomputed %d invoice(s).\n", n)
				return nil
			})
		},
	}
}

func repriceInvoicesCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "reprice-invoices",
		Short: "Refresh the consultation line of unpaid invoices to the current rank fee",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				n, err := a.billing.Reprice(ctx, all)
				if err != nil {
					return fmt.Errorf("reprice invoices: %w", err)
				}
				cmd.Printf("Repriced %d invoice(s).\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "also refresh the consultation line of paid, refunded and void invoices")
	return cmd
}
