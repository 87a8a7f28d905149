package cmd

import (
	"context"
	"fmt"

	"github.com/rzbill/dashgate/pkg/access"
	"github.com/rzbill/dashgate/pkg/cli/format"
	"github.com/rzbill/dashgate/pkg/document"
	"github.com/rzbill/dashgate/pkg/log"
	"github.com/spf13/cobra"
)

func newUpdateCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Compare the local copy with the remote config and refresh it",
		Long: `Compare the local copy with the remote config. The launcher refreshes
the local copy on every start; these commands do it without starting.`,
	}
	cmd.AddCommand(newUpdateCheckCmd(root), newUpdateApplyCmd(root))
	return cmd
}

// updateState is the local copy and the remote document for one check.
type updateState struct {
	rt     *runtime
	local  *document.Document
	remote *document.Document
}

func (u *updateState) available() bool {
	localVersion := document.DefaultVersion
	if u.local != nil {
		localVersion = u.local.Version
	}
	return document.IsNewer(u.remote.Version, localVersion)
}

func (u *updateState) localVersion() string {
	if u.local == nil {
		return "none"
	}
	return "v" + u.local.Version
}

// checkUpdate reads the local copy and fetches the remote document. The
// principal must be authorized by the remote document.
func (o *rootOptions) checkUpdate(ctx context.Context) (*updateState, error) {
	rt, err := o.newRuntime()
	if err != nil {
		return nil, err
	}
	store := rt.app.Store()
	local, err := store.Cached()
	if err != nil {
		rt.logger.Debug("No usable local copy", log.Err(err))
		local = nil
	}
	remote, err := store.FetchRemote(ctx, 0)
	store.RecordCheck(store.Options().Now())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote config: %w", err)
	}
	if d := access.Evaluate(remote, rt.app.Principal()); !d.Authorized {
		return nil, access.ErrDenied
	}
	return &updateState{rt: rt, local: local, remote: remote}, nil
}

func newUpdateCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report whether the remote config is newer than the local copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := root.checkUpdate(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !u.available() {
				fmt.Fprintln(out, format.StatusSymbol(true)+" "+format.Success("Up to date (%s)", u.localVersion()))
				return nil
			}
			fmt.Fprintln(out, format.Warning("Update available: v%s (local %s)", u.remote.Version, u.localVersion()))
			fmt.Fprintln(out, "Run 'dashgate update apply' to install it.")
			return nil
		},
	}
}

func newUpdateApplyCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Replace the local copy when the remote config is newer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := root.checkUpdate(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !u.available() {
				fmt.Fprintln(out, format.StatusSymbol(true)+" "+format.Success("Already up to date (%s)", u.localVersion()))
				return nil
			}
			if err := u.rt.app.Store().SaveLocal(u.remote); err != nil {
				return fmt.Errorf("failed to apply update: %w", err)
			}
			fmt.Fprintln(out, format.StatusSymbol(true)+" "+format.Success("Local copy updated to v%s", u.remote.Version))
			return nil
		},
	}
}
