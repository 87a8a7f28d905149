// Package cmd implements the dashgate command line.
package cmd

import (
	"os"

	"github.com/rzbill/dashgate/pkg/cli/format"
	"github.com/rzbill/dashgate/pkg/version"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	cfgFile  string
	verbose  bool
	logLevel string
	noColor  bool
}

// newRootCmd builds a fresh command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "dashgate",
		Short: "Dashgate - dashboard launcher with remote access control",
		Long: `Dashgate keeps a shared dashboard configuration in sync with its
remote copy, admits only the users it lists, and lets administrators
edit and publish it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Current().Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				format.EnableColor(false)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./dashgate.yaml, $HOME/.dashgate/dashgate.yaml or /etc/dashgate/dashgate.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		newRunCmd(opts),
		newStatusCmd(opts),
		newUpdateCmd(opts),
		newDashboardsCmd(opts),
		newUsersCmd(opts),
		newAdminsCmd(opts),
		newChangelogCmd(opts),
		newDraftCmd(opts),
		newPublishCmd(opts),
		newEncryptCmd(opts),
		newTokenCmd(opts),
		newNotifyCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		format.NewErrorFormatter("").Print(err)
		os.Exit(1)
	}
}
