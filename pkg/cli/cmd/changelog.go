package cmd

import (
	"fmt"
	"strings"

	"github.com/rzbill/dashgate/pkg/document"
	"github.com/spf13/cobra"
)

func newChangelogCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Show or extend the config changelog",
	}
	cmd.AddCommand(newChangelogListCmd(root), newChangelogAddCmd(root))
	return cmd
}

func newChangelogListCmd(root *rootOptions) *cobra.Command {
	var output string
	var limit int
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List releases, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			rt, err := root.startRuntime(cmd.Context())
			if err != nil {
				return err
			}
			doc, _, err := rt.workingDocument()
			if err != nil {
				return err
			}
			entries := doc.SortedChangelog()
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			if output != outputTable {
				return writeStructured(cmd.OutOrStdout(), output, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No releases recorded")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{"v" + e.Version, e.Date, e.Author, strings.Join(e.Changes, "\n")})
			}
			return renderTable(cmd.OutOrStdout(), []string{"VERSION", "DATE", "AUTHOR", "CHANGES"}, rows)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format (table, json, yaml)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many releases")
	return cmd
}

func newChangelogAddCmd(root *rootOptions) *cobra.Command {
	var version, changes, author string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Stage the next release in the draft",
		Long: `Stage the next release in the draft. The next 'dashgate publish'
commits this entry as the release instead of adding another one.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := root.adminRuntime(cmd.Context())
			if err != nil {
				return err
			}
			doc, _, err := rt.workingDocument()
			if err != nil {
				return err
			}
			v := version
			if v == "" {
				v = document.NextPatchVersion(doc.Version)
			}
			if author == "" {
				author = rt.app.Principal()
			}
			if err := doc.AddChangelogEntry(v, author, document.SplitChanges(changes), rt.app.Store().Options().Now()); err != nil {
				return err
			}
			if err := rt.saveDraft(doc); err != nil {
				return err
			}
			printSaved(cmd, "Release v%s recorded", v)
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "release version (default: next patch)")
	cmd.Flags().StringVar(&changes, "changes", "", "one change per line")
	cmd.Flags().StringVar(&author, "author", "", "author (default: current user)")
	_ = cmd.MarkFlagRequired("changes")
	return cmd
}
