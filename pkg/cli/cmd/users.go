package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rzbill/dashgate/pkg/cli/format"
	"github.com/rzbill/dashgate/pkg/document"
	"github.com/spf13/cobra"
)

func newUsersCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage authorized users",
	}
	cmd.AddCommand(
		newMembersListCmd(root, false),
		&cobra.Command{
			Use:   "add NAME",
			Short: "Authorize a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := editLocal(cmd, root, func(doc *document.Document, now time.Time) error {
					return doc.AddUser(args[0], now)
				}); err != nil {
					return err
				}
				printSaved(cmd, "User %q authorized", args[0])
				return nil
			},
		},
		newUsersRemoveCmd(root),
	)
	return cmd
}

func newUsersRemoveCmd(root *rootOptions) *cobra.Command {
	var keepAdmin bool
	cmd := &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Revoke a user's access",
		Long: `Revoke a user's access. The user also loses admin rights unless
--keep-admin is set; the last administrator cannot be removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := editLocal(cmd, root, func(doc *document.Document, now time.Time) error {
				return doc.RemoveUser(args[0], !keepAdmin, now)
			}); err != nil {
				return err
			}
			printSaved(cmd, "User %q removed", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepAdmin, "keep-admin", false, "leave the admin list untouched")
	return cmd
}

func newAdminsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "admins",
		Aliases: []string{"admin"},
		Short:   "Manage administrators",
	}
	cmd.AddCommand(
		newMembersListCmd(root, true),
		newAdminsAddCmd(root),
		&cobra.Command{
			Use:     "remove NAME",
			Aliases: []string{"rm"},
			Short:   "Revoke admin rights",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := editLocal(cmd, root, func(doc *document.Document, now time.Time) error {
					return doc.RemoveAdmin(args[0], now)
				}); err != nil {
					return err
				}
				printSaved(cmd, "Admin rights removed from %q", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newAdminsAddCmd(root *rootOptions) *cobra.Command {
	var noAuthorize bool
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Grant admin rights",
		Long:  `Grant admin rights. The user is also authorized unless --no-authorize is set.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := editLocal(cmd, root, func(doc *document.Document, now time.Time) error {
				return doc.AddAdmin(args[0], !noAuthorize, now)
			}); err != nil {
				return err
			}
			printSaved(cmd, "User %q is now an administrator", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&noAuthorize, "no-authorize", false, "do not add the user to the authorized list")
	return cmd
}

// newMembersListCmd lists authorized users, or admins when admins is set.
func newMembersListCmd(root *rootOptions, admins bool) *cobra.Command {
	var output string
	short := "List authorized users"
	if admins {
		short = "List administrators"
	}
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   short,
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
			names := doc.AuthorizedUsers
			if admins {
				names = doc.AdminUsers
			}
			names = append([]string(nil), names...)
			sort.Slice(names, func(i, j int) bool { return strings.ToLower(names[i]) < strings.ToLower(names[j]) })

			if output != outputTable {
				return writeStructured(cmd.OutOrStdout(), output, names)
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "None")
				return nil
			}
			rows := make([][]string, 0, len(names))
			for _, n := range names {
				rows = append(rows, []string{
					n,
					format.YesNo(document.Contains(doc.AuthorizedUsers, n)),
					format.YesNo(document.Contains(doc.AdminUsers, n)),
				})
			}
			if err := renderTable(cmd.OutOrStdout(), []string{"USER", "AUTHORIZED", "ADMIN"}, rows); err != nil {
				return err
			}
			noteStaged(cmd, staged)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format (table, json, yaml)")
	return cmd
}
