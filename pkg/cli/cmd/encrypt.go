package cmd

import (
	"fmt"

	"github.com/rzbill/dashgate/pkg/cli/format"
	"github.com/spf13/cobra"
)

func newEncryptCmd(root *rootOptions) *cobra.Command {
	var out, value string
	var decrypt bool
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Write an encrypted copy of the config, or encrypt a single URL",
		Long: `Write the current config with every dashboard URL encrypted, ready to
be committed by hand. With --value, encrypt (or with --decrypt, decrypt)
a single value and print it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := root.adminRuntime(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if value != "" {
				if decrypt {
					plain, err := rt.app.Cipher().DecryptStrict(value)
					if err != nil {
						return err
					}
					fmt.Fprintln(w, plain)
					return nil
				}
				token, err := rt.app.Cipher().EncryptStrict(value)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, token)
				return nil
			}

			if out == "" {
				out = rt.cfg.Store.ExportPath
			}
			if err := rt.app.Store().ExportEncrypted(out); err != nil {
				return err
			}
			fmt.Fprintln(w, format.StatusSymbol(true)+" "+format.Success("Encrypted config written to %s", out))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output path (default: store.export_path)")
	cmd.Flags().StringVar(&value, "value", "", "encrypt this value instead of the whole config")
	cmd.Flags().BoolVar(&decrypt, "decrypt", false, "decrypt --value instead")
	return cmd
}
