package cmd

import (
	"fmt"
	"time"

	"github.com/rzbill/dashgate/pkg/document"
	"github.com/spf13/cobra"
)

func newDashboardsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dashboards",
		Aliases: []string{"dashboard", "db"},
		Short:   "List and edit dashboards",
	}
	cmd.AddCommand(
		newDashboardsListCmd(root),
		newDashboardsAddCmd(root),
		newDashboardsUpdateCmd(root),
		newDashboardsRemoveCmd(root),
	)
	return cmd
}

func newDashboardsListCmd(root *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the dashboards you can open",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			rt, err := root.startRuntime(cmd.Context())
			if err != nil {
				return err
			}
			doc, staged, err := rt.workingDocument()
			if err != nil {
				return err
			}
			if output != outputTable {
				return writeStructured(cmd.OutOrStdout(), output, doc.Dashboards)
			}
			if len(doc.Dashboards) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No dashboards configured")
				return nil
			}
			rows := make([][]string, 0, len(doc.Dashboards))
			for _, name := range doc.DashboardNames() {
				rows = append(rows, []string{name, truncate(doc.Dashboards[name], 80)})
			}
			if err := renderTable(cmd.OutOrStdout(), []string{"NAME", "URL"}, rows); err != nil {
				return err
			}
			noteStaged(cmd, staged)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format (table, json, yaml)")
	return cmd
}

func newDashboardsAddCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME URL",
		Short: "Add a dashboard",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := editLocal(cmd, root, func(doc *document.Document, now time.Time) error {
				return doc.SetDashboard(args[0], args[1], false, now)
			})
			if err != nil {
				return err
			}
			printSaved(cmd, "Dashboard %q added", args[0])
			return nil
		},
	}
}

func newDashboardsUpdateCmd(root *rootOptions) *cobra.Command {
	var url, rename string
	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "Change a dashboard's URL or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" && rename == "" {
				return fmt.Errorf("nothing to change: pass --url and/or --name")
			}
			name := args[0]
			err := editLocal(cmd, root, func(doc *document.Document, now time.Time) error {
				if _, ok := doc.Dashboards[name]; !ok {
					return fmt.Errorf("dashboard %q: %w", name, document.ErrNotFound)
				}
				if url != "" {
					if err := doc.SetDashboard(name, url, true, now); err != nil {
						return err
					}
				}
				if rename != "" {
					return doc.RenameDashboard(name, rename, now)
				}
				return nil
			})
			if err != nil {
				return err
			}
			printSaved(cmd, "Dashboard %q updated", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "new URL")
	cmd.Flags().StringVar(&rename, "name", "", "new name")
	return cmd
}

func newDashboardsRemoveCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Remove a dashboard",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := editLocal(cmd, root, func(doc *document.Document, now time.Time) error {
				return doc.RemoveDashboard(args[0], now)
			})
			if err != nil {
				return err
			}
			printSaved(cmd, "Dashboard %q removed", args[0])
			return nil
		},
	}
}
