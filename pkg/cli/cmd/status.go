package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/rzbill/dashgate/pkg/app"
	"github.com/rzbill/dashgate/pkg/cli/format"
	"github.com/spf13/cobra"
)

type statusOptions struct {
	output  string
	offline bool
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	opts := &statusOptions{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show access, config, and network status",
		Long: `Show who you are signed in as, the config version in use, the network
mode, and whether the local copy matches the remote one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(opts.output); err != nil {
				return err
			}
			rt, err := root.startRuntime(cmd.Context())
			if err != nil {
				return err
			}
			st := rt.app.Status()
			if !opts.offline {
				st = rt.app.RemoteStatus(cmd.Context())
			}
			if opts.output != outputTable {
				return writeStructured(cmd.OutOrStdout(), opts.output, st)
			}
			return renderStatus(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputTable, "output format (table, json, yaml)")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "skip the remote comparison")
	return cmd
}

func renderStatus(w io.Writer, st app.Status) error {
	role := "user"
	if st.Admin {
		role = "admin"
	}
	network := "direct"
	if st.Corporate {
		network = "corporate"
		if st.ProxyURL != "" {
			network += " via " + st.ProxyURL
		}
	}
	remote := "not checked"
	switch {
	case st.RemoteError != "":
		remote = format.Error("unreachable: %s", st.RemoteError)
	case st.RemoteDigest != "" && st.Diverged:
		remote = format.Warning("differs from local copy")
	case st.RemoteDigest != "":
		remote = format.Success("in sync")
	}

	rows := [][]string{
		{"User", fmt.Sprintf("%s (%s)", st.Principal, role)},
		{"Access", format.StatusLabel(st.State)},
		{"Config version", "v" + st.Version},
		{"Dashboards", fmt.Sprintf("%d", st.Dashboards)},
		{"Network", fmt.Sprintf("%s [%s]", network, st.NetworkReason)},
		{"Local cache in use", format.YesNo(st.UsingLocalConfig)},
		{"Remote", remote},
		{"Last update check", formatTime(st.LastUpdateCheck)},
		{"Local digest", truncate(st.LocalDigest, 16)},
	}
	if st.UpdateAvailable != "" {
		rows = append(rows, []string{"Update available", format.Warning("v%s", st.UpdateAvailable)})
	}
	if err := renderTable(w, []string{"FIELD", "VALUE"}, rows); err != nil {
		return err
	}
	for _, ind := range st.Indicators() {
		fmt.Fprintln(w, format.Warning("! %s", ind))
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
