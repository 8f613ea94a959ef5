package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDBCommand(a *app) *cobra.Command {
	db := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Run the SQLite integrity check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(false)
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := store.IntegrityCheck()
			if err != nil {
				return err
			}
			for _, line := range results {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if len(results) != 1 || !strings.EqualFold(results[0], "ok") {
				return fmt.Errorf("integrity check reported %d problem(s)", len(results))
			}
			return nil
		},
	}

	var into string
	vacuum := &cobra.Command{
		Use:   "vacuum",
		Short: "Rebuild the database file, or write a compacted copy with --into",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(false)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Vacuum(into); err != nil {
				return err
			}
			if into != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", into)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Vacuum complete")
			}
			return nil
		},
	}
	vacuum.Flags().StringVar(&into, "into", "", "write the compacted database to this path instead")

	analyze := &cobra.Command{
		Use:   "analyze",
		Short: "Refresh query planner statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(false)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Analyze(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Analyze complete")
			return nil
		},
	}

	db.AddCommand(check, vacuum, analyze)
	return db
}
