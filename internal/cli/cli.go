// Package cli implements the rankdesk command line: the API server, the
// batch audit runner and the data repair commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raysh454/rankdesk/internal/app"
	"github.com/raysh454/rankdesk/internal/logging"
)

// errSilent marks a failure that was already reported on stdout.
var errSilent = errors.New("command failed")

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand builds the command tree. version is printed by
// "rankdesk version".
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "rankdesk",
		Short:         "SEO agency backend: campaigns, audits and the tasks they produce",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (CONFIG_PATH)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: json or text")

	root.AddCommand(
		newServeCommand(opts),
		newAuditCommand(opts),
		newMigrateCommand(opts),
		newDemoSiteCommand(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "rankdesk %s\n", version)
			},
		},
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(version string, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(version)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		}
		return 1
	}
	return 0
}

// loadConfig reads the config file and applies flag overrides.
func (o *rootOptions) loadConfig() (*app.Config, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := app.Load(path)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	return cfg, nil
}

// newLogger writes to errOut so stdout stays clean for command output.
func newLogger(cfg app.LogConfig, errOut io.Writer) (logging.Logger, error) {
	if strings.EqualFold(cfg.Format, "text") {
		return logging.NewWriterLogger("rankdesk", errOut), nil
	}
	return logging.New(cfg.Format, cfg.Level, "rankdesk")
}

// open loads config and builds the application for one command.
func (o *rootOptions) open(cmd *cobra.Command) (*app.Application, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger), nil
}
