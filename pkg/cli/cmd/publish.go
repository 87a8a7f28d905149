package cmd

import (
	"fmt"

	"github.com/rzbill/dashgate/pkg/cli/format"
	"github.com/rzbill/dashgate/pkg/crypto"
	"github.com/rzbill/dashgate/pkg/document"
	"github.com/rzbill/dashgate/pkg/log"
	"github.com/rzbill/dashgate/pkg/publisher"
	"github.com/spf13/cobra"
)

type publishOptions struct {
	version   string
	changes   string
	message   string
	force     bool
	draft     string
	tokenFile string
}

func newPublishCmd(root *rootOptions) *cobra.Command {
	opts := &publishOptions{}
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Encrypt the config and publish it as a new version",
		Long: `Publish the staged edits (or the current config, or a hand-edited
file given with --draft) to the config repository.

An entry staged with 'changelog add' becomes the release and --changes
lines are merged into it. Otherwise a changelog entry is added for the new
version and --changes is required. Dashboard URLs are encrypted, and the
file is committed with optimistic concurrency. The commit is refused when
someone published since the edits were started.`,
		Example: `  dashgate publish --changes "Added Sales dashboard"
  dashgate changelog add --version 1.3.0 --changes "New layout" && dashgate publish
  dashgate publish --version 2.0.0 --changes $'New layout\nRemoved legacy boards'
  dashgate publish --draft ./dashboard_config.jsonc --changes "Bulk edit"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := root.adminRuntime(cmd.Context())
			if err != nil {
				return err
			}

			var doc *document.Document
			staged := false
			if opts.draft != "" {
				if doc, err = document.LoadDraft(opts.draft); err != nil {
					f := format.NewErrorFormatter(opts.draft)
					f.Out = cmd.ErrOrStderr()
					f.Print(err)
					return fmt.Errorf("draft %s is invalid", opts.draft)
				}
			} else if doc, staged, err = rt.workingDocument(); err != nil {
				return err
			}

			tokenOpts := rt.cfg.TokenOptions()
			if opts.tokenFile != "" {
				tokenOpts.FilePath = opts.tokenFile
			}
			token, source, err := crypto.LoadToken(tokenOpts)
			if err != nil {
				return err
			}
			rt.logger.Debug("Using publish token", log.Str("token_source", string(source)))

			res, err := rt.app.Publish(cmd.Context(), doc, publisher.Release{
				Version: opts.version,
				Changes: document.SplitChanges(opts.changes),
				Message: opts.message,
				Force:   opts.force,
			}, token)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, format.StatusSymbol(true)+" "+format.Success("%s", res.Message()))
			if staged {
				if err := rt.discardDraft(); err != nil {
					rt.logger.Warn("Published but the draft was kept", log.Err(err))
				}
			}
			if res.Notified {
				fmt.Fprintln(out, "Telegram notification sent.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.version, "version", "", "version to publish (default: next patch)")
	cmd.Flags().StringVar(&opts.changes, "changes", "", "changelog lines, one per line (optional when an entry is staged)")
	cmd.Flags().StringVar(&opts.message, "message", "", "commit message")
	cmd.Flags().BoolVar(&opts.force, "force", false, "publish even when nothing changed")
	cmd.Flags().StringVar(&opts.draft, "draft", "", "publish this JSON/JSONC file instead of the staged edits")
	cmd.Flags().StringVar(&opts.tokenFile, "token-file", "", "read the token from this file")
	return cmd
}
