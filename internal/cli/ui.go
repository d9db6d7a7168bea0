package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tOgg1/dmfeed/internal/chatui"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat [contact]",
	Short: "Open a conversation",
	Long: `Open the interactive chat view with a contact (id or @username).
Without an argument the last opened conversation is resumed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !hasTTY() {
			return errors.New("chat requires an interactive terminal; use 'dmfeed history' and 'dmfeed send' instead")
		}
		ctx := context.Background()

		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		viewer, err := rt.viewer(ctx)
		if err != nil {
			return err
		}
		contact, err := rt.contact(ctx, firstArg(args))
		if err != nil {
			return err
		}
		ctrl, err := rt.newController(viewer)
		if err != nil {
			return err
		}
		rt.rememberContact(viewer, contact)

		return chatui.Run(chatui.Config{
			Controller:       ctrl,
			Contact:          contact,
			Theme:            rt.cfg.TUI.Theme,
			ShowTimestamps:   rt.cfg.TUI.ShowTimestamps,
			PrefetchInterval: rt.cfg.Feed.PrefetchInterval,
		})
	},
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
