package cmd

import (
	"fmt"

	"github.com/rzbill/dashgate/pkg/cli/format"
	"github.com/spf13/cobra"
)

func newNotifyCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Publish notifications",
	}
	cmd.AddCommand(newNotifyTestCmd(root))
	return cmd
}

func newNotifyTestCmd(root *rootOptions) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check the Telegram bot and send a test message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := root.newRuntime()
			if err != nil {
				return err
			}
			tg := rt.app.Telegram()
			if !tg.Enabled() {
				return fmt.Errorf("telegram is not configured: set notify.telegram.bot_token and chat_id")
			}
			bot, err := tg.Ping(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, format.Label("Bot", "@"+bot))
			if message == "" {
				message = fmt.Sprintf("✅ Dashgate test message from %s", rt.app.Principal())
			}
			if !tg.Send(cmd.Context(), message) {
				return fmt.Errorf("bot reachable but the message was not delivered (check chat_id)")
			}
			fmt.Fprintln(w, format.StatusSymbol(true)+" "+format.Success("Test message sent"))
			return nil
		},
	}
	cmd.Flags().StringVar(&message, "message", "", "message text")
	return cmd
}
