package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/dmfeed/internal/backend"
	"github.com/tOgg1/dmfeed/internal/models"
)

var (
	usersAddName  string
	usersAddImage string
)

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd, usersAddCmd)

	usersAddCmd.Flags().StringVar(&usersAddName, "name", "", "display name (default: the username)")
	usersAddCmd.Flags().StringVar(&usersAddImage, "image", "", "avatar image URL")
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
	Long:  "List and register the users that can exchange direct messages.",
}

var usersListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		users, err := rt.store.ListUsers(ctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		out := cmd.OutOrStdout()
		if IsJSONOutput() {
			return WriteOutput(out, users)
		}
		if len(users) == 0 {
			fmt.Fprintln(out, "No users found.")
			return nil
		}

		rows := make([][]string, 0, len(users))
		for _, user := range users {
			rows = append(rows, []string{user.Handle(), user.Name, user.ID, user.Avatar()})
		}
		return writeTable(out, []string{"USERNAME", "NAME", "ID", "AVATAR"}, rows)
	},
}

var usersAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		username := strings.TrimPrefix(strings.TrimSpace(args[0]), "@")
		name := strings.TrimSpace(usersAddName)
		if name == "" {
			name = username
		}

		user, err := rt.store.CreateUser(ctx, models.User{
			Name:     name,
			Username: username,
			ImageURL: strings.TrimSpace(usersAddImage),
		})
		if errors.Is(err, backend.ErrUserExists) {
			return fmt.Errorf("username @%s is taken", username)
		}
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		if IsJSONOutput() {
			return WriteOutput(cmd.OutOrStdout(), user)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", user.Handle(), user.ID)
		PrintNextSteps(cmd.OutOrStdout(), HintContext{Action: "users_add", User: user.Handle()})
		return nil
	},
}
