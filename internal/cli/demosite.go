package cli

import (
	"github.com/spf13/cobra"

	"github.com/raysh454/rankdesk/internal/demosite"
)

func newDemoSiteCommand(root *rootOptions) *cobra.Command {
	cfg := demosite.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "demosite",
		Short: "Serve a local website with known SEO defects to audit",
		Long: `Serves pages that each carry one defect (missing title, no h1, thin
content, 404, 500, slow response). The control panel at /demo/control
switches pages to a fixed version so a second audit comes back clean.

Audit it with: rankdesk audit --provider crawl --domain http://localhost:9999`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := root.loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(conf.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return demosite.New(cfg, logger).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	cmd.Flags().DurationVar(&cfg.SlowDelay, "slow-delay", cfg.SlowDelay, "delay for the slow page")
	cmd.Flags().IntVar(&cfg.InitialVersion, "initial-version", cfg.InitialVersion, "initial page version: 1 defective, 2 fixed")
	return cmd
}
