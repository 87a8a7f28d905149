package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rzbill/dashgate/pkg/cli/format"
	"github.com/rzbill/dashgate/pkg/document"
	"github.com/rzbill/dashgate/pkg/utils"
	"github.com/spf13/cobra"
)

// Admin edits accumulate in a draft file next to the local copy. Each start
// reloads the remote document, so the draft is what carries edits from one
// command to the next until publish.

// workingDocument returns the staged draft when there is one, else the
// current document.
func (rt *runtime) workingDocument() (*document.Document, bool, error) {
	path := rt.cfg.Store.DraftPath
	if path == "" || !utils.FileExists(path) {
		return rt.app.Store().Current(), false, nil
	}
	doc, err := document.LoadDraft(path)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (rt *runtime) saveDraft(doc *document.Document) error {
	data, err := document.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	return utils.WriteFileAtomic(rt.cfg.Store.DraftPath, data, 0600)
}

func (rt *runtime) discardDraft() error {
	err := os.Remove(rt.cfg.Store.DraftPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove draft: %w", err)
	}
	return nil
}

// editLocal applies fn to the working document as an admin and stages the
// result.
func editLocal(cmd *cobra.Command, root *rootOptions, fn func(doc *document.Document, now time.Time) error) error {
	rt, err := root.adminRuntime(cmd.Context())
	if err != nil {
		return err
	}
	doc, _, err := rt.workingDocument()
	if err != nil {
		return err
	}
	if err := fn(doc, rt.app.Store().Options().Now()); err != nil {
		return err
	}
	return rt.saveDraft(doc)
}

func printSaved(cmd *cobra.Command, msg string, a ...interface{}) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, format.StatusSymbol(true)+" "+format.Success(msg, a...))
	fmt.Fprintln(out, "Staged in the draft. Run 'dashgate publish' to share it.")
}

// noteStaged tells the user that a listing came from the draft.
func noteStaged(cmd *cobra.Command, staged bool) {
	if staged {
		fmt.Fprintln(cmd.OutOrStdout(), format.Warning("Showing staged edits (see 'dashgate draft show')."))
	}
}

func newDraftCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Inspect or discard staged edits",
	}
	cmd.AddCommand(newDraftShowCmd(root), newDraftDiscardCmd(root))
	return cmd
}

func newDraftShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Compare the staged draft with the current config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := root.adminRuntime(cmd.Context())
			if err != nil {
				return err
			}
			draft, staged, err := rt.workingDocument()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if !staged {
				fmt.Fprintln(w, "No staged edits")
				return nil
			}
			cur := rt.app.Store().Current()
			rows := [][]string{
				{"Version", cur.Version, draft.Version},
				{"Dashboards", fmt.Sprint(len(cur.Dashboards)), fmt.Sprint(len(draft.Dashboards))},
				{"Authorized users", fmt.Sprint(len(cur.AuthorizedUsers)), fmt.Sprint(len(draft.AuthorizedUsers))},
				{"Admins", fmt.Sprint(len(cur.AdminUsers)), fmt.Sprint(len(draft.AdminUsers))},
				{"Requires corporate network", format.YesNo(cur.RequireCorporateNetwork), format.YesNo(draft.RequireCorporateNetwork)},
			}
			if err := renderTable(w, []string{"", "CURRENT", "DRAFT"}, rows); err != nil {
				return err
			}
			if document.Digest(cur) == document.Digest(draft) {
				fmt.Fprintln(w, "The draft matches the current config.")
			}
			fmt.Fprintln(w, format.Label("Draft", rt.cfg.Store.DraftPath))
			return nil
		},
	}
}

func newDraftDiscardCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "Drop the staged edits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if err := (&runtime{cfg: cfg}).discardDraft(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.StatusSymbol(true)+" "+format.Success("Draft discarded"))
			return nil
		},
	}
}
