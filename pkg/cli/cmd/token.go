package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rzbill/dashgate/pkg/cli/format"
	"github.com/rzbill/dashgate/pkg/crypto"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newTokenCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the GitHub token used to publish",
	}
	cmd.AddCommand(newTokenSetCmd(root), newTokenVerifyCmd(root), newTokenShowCmd(root))
	return cmd
}

func newTokenSetCmd(root *rootOptions) *cobra.Command {
	var value string
	var noVerify bool
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a token (prompted when --value is not given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := root.newRuntime()
			if err != nil {
				return err
			}
			token := strings.TrimSpace(value)
			if token == "" {
				if token, err = readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "GitHub token: "); err != nil {
					return err
				}
			}
			if !noVerify {
				if err := rt.app.Publisher().VerifyToken(cmd.Context(), token); err != nil {
					return err
				}
			}
			path := rt.cfg.Publisher.TokenFile
			if err := crypto.SaveToken(path, token); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.StatusSymbol(true)+" "+format.Success("Token %s saved to %s", crypto.MaskToken(token), path))
			return nil
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "token value (avoid: it lands in shell history)")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "save without checking write access")
	return cmd
}

func newTokenVerifyCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the stored token can publish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := root.newRuntime()
			if err != nil {
				return err
			}
			token, source, err := crypto.LoadToken(rt.cfg.TokenOptions())
			if err != nil {
				return err
			}
			if err := rt.app.Publisher().VerifyToken(cmd.Context(), token); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.StatusSymbol(true)+" "+format.Success("Token from %s has write access", source))
			return nil
		},
	}
}

func newTokenShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show where the token comes from, masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			token, source, err := crypto.LoadToken(cfg.TokenOptions())
			if err != nil {
				return err
			}
			from := cfg.Publisher.TokenFile
			if source == crypto.TokenSourceEnv {
				from = "$" + cfg.Publisher.TokenEnv
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, format.Label("Token", crypto.MaskToken(token)))
			fmt.Fprintln(w, format.Label("Source", from))
			return nil
		},
	}
}

// readSecret reads a line without echo when in is a terminal.
func readSecret(in io.Reader, prompt io.Writer, label string) (string, error) {
	fmt.Fprint(prompt, label)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if line = strings.TrimSpace(line); line == "" {
		return "", fmt.Errorf("no token given")
	}
	return line, nil
}
