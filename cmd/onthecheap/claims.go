package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"onthecheap/internal/app/claims"
	"onthecheap/internal/models"
	"onthecheap/internal/store"
)

// Claims commands
var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "Review venue ownership claims",
}

var claimsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List claims, optionally filtered by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		return withClaims(cmd.Context(), func(ctx context.Context, svc claims.Service) error {
			list, err := svc.List(ctx, models.ClaimStatus(status))
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No claims found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tVENUE\tBUSINESS\tSUBMITTED")
			for _, c := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					c.ID, c.Status, c.ExternalID, c.BusinessName, c.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		})
	},
}

var claimsApproveCmd = &cobra.Command{
	Use:   "approve CLAIM_ID",
	Short: "Approve a pending claim and import its venue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(cmd, args[0], claims.Service.Approve)
	},
}

var claimsRejectCmd = &cobra.Command{
	Use:   "reject CLAIM_ID",
	Short: "Reject a pending claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(cmd, args[0], claims.Service.Reject)
	},
}

func init() {
	claimsCmd.AddCommand(claimsListCmd)
	claimsCmd.AddCommand(claimsApproveCmd)
	claimsCmd.AddCommand(claimsRejectCmd)

	claimsListCmd.Flags().String("status", "", "Filter by status (pending, approved, rejected)")
}

func decide(cmd *cobra.Command, rawID string, fn func(claims.Service, context.Context, uuid.UUID) (models.Claim, error)) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("claim id must be a uuid: %w", err)
	}
	return withClaims(cmd.Context(), func(ctx context.Context, svc claims.Service) error {
		c, err := fn(svc, ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Claim %s is now %s\n", c.ID, c.Status)
		return nil
	})
}

// withClaims builds a claims service over the database and the configured
// providers, which approval needs to import the claimed venue.
func withClaims(ctx context.Context, fn func(context.Context, claims.Service) error) error {
	return withDatabase(ctx, func(db *sql.DB) error {
		registry, closeProviders, err := buildProviders(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeProviders()

		pub, closePublisher := buildPublisher(cfg)
		defer closePublisher()

		return fn(ctx, claims.New(store.New(db), registry, pub, cfg.Providers.Timeout))
	})
}
