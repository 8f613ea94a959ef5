package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treefix50/estate/internal/auth"
)

func newAdminCommand(a *app) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	var email, password string
	reset := &cobra.Command{
		Use:   "reset-password",
		Short: "Set an admin password, creating the account if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				email = a.cfg.Auth.AdminEmail
			}
			generated := password == ""
			if generated {
				password = auth.GenerateAdminPassword()
			}

			store, err := a.openStore(false)
			if err != nil {
				return err
			}
			defer store.Close()

			created, err := auth.NewManager(store, a.cfg.Auth.SessionTTL).SetAdminPassword(email, password)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if created {
				fmt.Fprintf(out, "Created admin %s\n", auth.NormalizeEmail(email))
			} else {
				fmt.Fprintf(out, "Updated password for %s; existing sessions were signed out\n", auth.NormalizeEmail(email))
			}
			if generated {
				fmt.Fprintf(out, "Password: %s\n", password)
			}
			return nil
		},
	}
	reset.Flags().StringVar(&email, "email", "", "account email (default auth.admin_email)")
	reset.Flags().StringVar(&password, "password", "", "new password (generated when empty)")

	admin.AddCommand(reset)
	return admin
}
