package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raysh454/rankdesk/internal/migrate"
)

func newMigrateCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect and repair stored data",
	}
	cmd.AddCommand(newAdoptOrphansCommand(root), newInspectCommand(root))
	return cmd
}

func newAdoptOrphansCommand(root *rootOptions) *cobra.Command {
	var (
		org   string
		apply bool
	)
	cmd := &cobra.Command{
		Use:   "adopt-orphans",
		Short: "Assign campaigns without an organization to --org",
		Long: `Without --apply, prints the campaigns that would be adopted. With
--apply, adopts them and records a marker so the repair runs only once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			st, err := a.Store(cmd.Context())
			if err != nil {
				return err
			}

			m := migrate.AdoptOrphans{TargetOrg: org, Logger: a.Logger}
			out := cmd.OutOrStdout()
			if !apply {
				plan, err := m.Plan(cmd.Context(), st)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}
			n, err := m.Apply(cmd.Context(), st)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "adopted %d campaigns into %s\n", n, org)
			return nil
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "target organization id (required)")
	cmd.Flags().BoolVar(&apply, "apply", false, "write the changes instead of previewing them")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func newInspectCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print profiles, organizations, campaigns and audits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			st, err := a.Store(cmd.Context())
			if err != nil {
				return err
			}
			report, err := migrate.Inspect(cmd.Context(), st)
			if err != nil {
				return err
			}
			return report.Write(cmd.OutOrStdout())
		},
	}
}
