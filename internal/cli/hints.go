package cli

import (
	"fmt"
	"io"
)

// HintContext provides context for generating relevant next steps.
type HintContext struct {
	// Action is the command that was executed (e.g. "users_add", "send").
	Action string

	// User is the handle the command acted as or created.
	User string

	// Contact is the conversation partner, if any.
	Contact string

	// MessageID is the message involved, if any.
	MessageID string
}

// PrintNextSteps prints contextual next steps after a successful command.
// Does nothing if JSON output is enabled or the output is piped.
func PrintNextSteps(out io.Writer, ctx HintContext) {
	if IsJSONOutput() || !hasTTY() {
		return
	}

	hints := generateHints(ctx)
	if len(hints) == 0 {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	for _, hint := range hints {
		fmt.Fprintf(out, "  %s\n", hint)
	}
}

func generateHints(ctx HintContext) []string {
	switch ctx.Action {
	case "users_add":
		if ctx.User == "" {
			return nil
		}
		return []string{
			fmt.Sprintf("dmfeed context use %s        # Act as this user", ctx.User),
			fmt.Sprintf("dmfeed send %s \"hi\"          # Message this user", ctx.User),
		}
	case "context_use":
		return []string{
			"dmfeed users list                 # Find someone to talk to",
			"dmfeed chat <user>                # Open a conversation",
		}
	case "send":
		if ctx.Contact == "" {
			return nil
		}
		hints := []string{
			fmt.Sprintf("dmfeed chat %s               # Continue in the chat view", ctx.Contact),
			fmt.Sprintf("dmfeed history %s            # Print the conversation", ctx.Contact),
		}
		if ctx.MessageID != "" {
			hints = append(hints, fmt.Sprintf("dmfeed delete %s --with %s   # Take it back", ctx.MessageID, ctx.Contact))
		}
		return hints
	default:
		return nil
	}
}
