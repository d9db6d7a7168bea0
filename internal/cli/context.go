package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.AddCommand(contextUseCmd, contextClearCmd)
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Show the current user and conversation",
	Long: `Show the saved context: the user commands act as and the last opened
conversation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openContextOnly()
		if err != nil {
			return err
		}
		saved, err := rt.contexts.Load()
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return WriteOutput(cmd.OutOrStdout(), saved)
		}
		fmt.Fprintln(cmd.OutOrStdout(), saved.String())
		return nil
	},
}

var contextUseCmd = &cobra.Command{
	Use:   "use <user>",
	Short: "Act as a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		user, err := rt.resolve(ctx, args[0])
		if err != nil {
			return err
		}
		saved, err := rt.contexts.Load()
		if err != nil {
			return err
		}
		saved.SetUser(user.ID, user.Username)
		if err := rt.contexts.Save(saved); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Now acting as %s\n", displayUser(user))
		PrintNextSteps(cmd.OutOrStdout(), HintContext{Action: "context_use", User: displayUser(user)})
		return nil
	},
}

var contextClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the saved context",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openContextOnly()
		if err != nil {
			return err
		}
		if err := rt.contexts.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Context cleared")
		return nil
	},
}
