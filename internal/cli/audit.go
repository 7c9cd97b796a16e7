package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raysh454/rankdesk/internal/audit"
	"github.com/raysh454/rankdesk/internal/model"
)

type auditOptions struct {
	domain     string
	pages      int
	campaignID string
	dryRun     bool
	provider   string
}

func newAuditCommand(root *rootOptions) *cobra.Command {
	opts := &auditOptions{}
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run one audit to completion and print the result as JSON",
		Long: `Submits a crawl for --domain, polls until it is ready and turns the
page findings into tasks. With --campaign-id the audit and tasks are
stored; --dry-run only reports what would be created.

Exits 0 when the audit completed and 1 otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, root, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.domain, "domain", "", "domain to audit (required)")
	f.IntVar(&opts.pages, "pages", 0, "maximum pages to crawl (default from config)")
	f.StringVar(&opts.campaignID, "campaign-id", "", "campaign to store the audit and tasks under")
	f.BoolVar(&opts.dryRun, "dry-run", false, "do not store anything")
	f.StringVar(&opts.provider, "provider", "", "audit provider: dataforseo or crawl (default from config)")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}

func runAudit(cmd *cobra.Command, root *rootOptions, opts *auditOptions) error {
	a, err := root.open(cmd)
	if err != nil {
		return setupFailed(cmd, err)
	}
	defer a.Close()
	if err := a.Config.Audit.Validate(); err != nil {
		return setupFailed(cmd, err)
	}

	useStore := opts.campaignID != "" && !opts.dryRun
	runner, err := a.NewRunner(cmd.Context(), opts.provider, useStore)
	if err != nil {
		return setupFailed(cmd, err)
	}

	res := runner.Run(cmd.Context(), audit.RunRequest{
		Domain:     opts.domain,
		Pages:      opts.pages,
		CampaignID: opts.campaignID,
		DryRun:     opts.dryRun,
	})
	if err := writeResult(cmd, res); err != nil {
		return err
	}
	if !res.Success {
		return errSilent
	}
	return nil
}

// setupFailed reports an error raised before the audit started in the same
// JSON shape as a finished run.
func setupFailed(cmd *cobra.Command, err error) error {
	res := audit.Result{Success: false, Error: err.Error(), Status: model.AuditFailed}
	if werr := writeResult(cmd, res); werr != nil {
		return err
	}
	return errSilent
}

func writeResult(cmd *cobra.Command, res audit.Result) error {
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
