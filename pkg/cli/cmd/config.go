package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rzbill/dashgate/internal/config"
	"github.com/rzbill/dashgate/pkg/cli/format"
	"github.com/rzbill/dashgate/pkg/crypto"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the dashgate settings file",
		Long: `Manage the dashgate settings file.

Settings are read from --config, or from dashgate.yaml in the working
directory, $HOME/.dashgate or /etc/dashgate. Any key can be overridden
with a DASHGATE_ environment variable, e.g. DASHGATE_REMOTE_URL.`,
	}
	cmd.AddCommand(newConfigInitCmd(root), newConfigViewCmd(root))
	return cmd
}

func newConfigInitCmd(root *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a settings file with the defaults",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.FileName + ".yaml"
			switch {
			case len(args) > 0:
				path = args[0]
			case root.cfgFile != "":
				path = root.cfgFile
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.WriteDefault(path); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.StatusSymbol(true)+" "+format.Success("Wrote %s", path))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigViewCmd(root *rootOptions) *cobra.Command {
	var showSecrets bool
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if !showSecrets {
				cfg.Cipher.Secret = maskSecret(cfg.Cipher.Secret)
				cfg.Notify.Telegram.BotToken = maskSecret(cfg.Notify.Telegram.BotToken)
			}
			w := cmd.OutOrStdout()
			source := cfg.Path()
			if source == "" {
				source = "defaults"
			}
			fmt.Fprintf(w, "# source: %s\n", source)
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print secrets unmasked")
	return cmd
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return crypto.MaskToken(s)
}
