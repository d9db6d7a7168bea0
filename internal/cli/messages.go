package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/dmfeed/internal/feed"
	"github.com/tOgg1/dmfeed/internal/models"
)

const historyContentWidth = 60

var (
	historyLimit int
	deleteWith   string
)

func init() {
	rootCmd.AddCommand(historyCmd, sendCmd, deleteCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "number of newest messages to show (0 for the whole history)")
	deleteCmd.Flags().StringVar(&deleteWith, "with", "", "conversation partner (default: last opened conversation)")
}

var historyCmd = &cobra.Command{
	Use:     "history [contact]",
	Aliases: []string{"log"},
	Short:   "Print a conversation",
	Long:    "Print the newest messages of a conversation, oldest first.",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyLimit < 0 {
			return fmt.Errorf("--limit must not be negative")
		}
		ctx := context.Background()

		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctrl, contact, err := rt.openConversation(ctx, firstArg(args))
		if err != nil {
			return err
		}
		for ctrl.HasMore() && (historyLimit == 0 || ctrl.Snapshot().Sequence.Len() < historyLimit) {
			if err := ctrl.LoadMore(ctx); err != nil {
				return err
			}
		}

		messages := ctrl.Snapshot().Sequence.Messages()
		if historyLimit > 0 && len(messages) > historyLimit {
			messages = messages[len(messages)-historyLimit:]
		}

		out := cmd.OutOrStdout()
		if IsJSONOutput() {
			return WriteOutput(out, messages)
		}
		if len(messages) == 0 {
			fmt.Fprintf(out, "No messages with %s yet.\n", displayUser(contact))
			return nil
		}

		viewer := ctrl.Viewer()
		rows := make([][]string, 0, len(messages))
		for _, msg := range messages {
			from := displayUser(contact)
			if msg.SenderID == viewer.ID {
				from = "you"
			}
			rows = append(rows, []string{
				msg.CreatedAt.Local().Format("2006-01-02 15:04"),
				from,
				msg.ID,
				truncateCell(strings.Join(strings.Fields(msg.Content), " "), historyContentWidth),
			})
		}
		return writeTable(out, []string{"TIME", "FROM", "ID", "MESSAGE"}, rows)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <contact> <message>",
	Short: "Send a message",
	Long:  "Send a direct message to a contact (id or @username).",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctrl, contact, err := rt.openConversation(ctx, args[0])
		if err != nil {
			return err
		}
		msg, err := ctrl.Send(ctx, strings.Join(args[1:], " "))
		if err != nil {
			return sendError(err)
		}

		if IsJSONOutput() {
			return WriteOutput(cmd.OutOrStdout(), msg)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg.ID)
		PrintNextSteps(cmd.OutOrStdout(), HintContext{Action: "send", Contact: displayUser(contact), MessageID: msg.ID})
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <message-id>",
	Aliases: []string{"rm"},
	Short:   "Delete one of your messages",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id := strings.TrimSpace(args[0])

		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctrl, _, err := rt.openConversation(ctx, deleteWith)
		if err != nil {
			return err
		}
		// Page back until the message is loaded; deletes only apply to
		// messages present in the feed.
		for !containsMessage(ctrl.Snapshot(), id) && ctrl.HasMore() {
			if err := ctrl.LoadMore(ctx); err != nil {
				return err
			}
		}

		if err := ctrl.Delete(ctx, id); err != nil {
			return sendError(err)
		}
		if IsJSONOutput() {
			return WriteOutput(cmd.OutOrStdout(), map[string]string{"deleted": id})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		return nil
	},
}

// sendError prefers the user-facing notice text for feed failures.
func sendError(err error) error {
	if notice, ok := feed.NoticeFor(err, ""); ok {
		return fmt.Errorf("%s: %w", notice.Title, err)
	}
	if errors.Is(err, feed.ErrEmptyContent) {
		return errors.New("message is empty")
	}
	return err
}

func containsMessage(snapshot models.Snapshot, id string) bool {
	for _, msg := range snapshot.Sequence.Messages() {
		if msg.ID == id {
			return true
		}
	}
	return false
}

func displayUser(user models.User) string {
	if handle := user.Handle(); handle != "" {
		return handle
	}
	if user.Name != "" {
		return user.Name
	}
	return user.ID
}
