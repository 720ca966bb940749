package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fastpay/internal/database"
	"fastpay/internal/mw"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the order and client tables if they are missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURI == "" {
				return errors.New("DATABASE_URL is required")
			}

			db, err := database.NewDB(cmd.Context(), cfg.DatabaseURI)
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			if err := database.InitSchema(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <session-id>",
		Short: "Reconcile an order with its Stripe checkout session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.payments.SyncCheckoutSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s: %s (paid %.2f)\n", res.OrderID, res.PaymentStatus, res.AmountPaid)
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the automation routes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.AutomationKey == "" {
				return errors.New("AUTOMATION_JWT_SECRET is required")
			}

			subject, _ := cmd.Flags().GetString("subject")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			token, err := mw.IssueToken(cfg.AutomationKey, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("subject", "manychat", "token subject")
	cmd.Flags().Duration("ttl", 0, "token lifetime (0 = no expiry)")
	return cmd
}
