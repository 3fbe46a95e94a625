package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/schemajeli/schemajeli/internal/types"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage catalog users without the API",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a user, typically the first administrator",
	Long: `Create a catalog user directly in the store. This is how the first
ADMIN is bootstrapped before anyone can log in to the API.

If --password is omitted it is read from stdin.

Examples:
  schemajeli user add admin --email admin@example.com --role ADMIN
  echo "$PASSWORD" | schemajeli user add ci --email ci@example.com --role VIEWER`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := mustString(cmd, "password")
		if password == "" {
			fmt.Print("Password: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		ctx := context.Background()
		rt, err := openRuntime(ctx, "user")
		if err != nil {
			return err
		}
		defer rt.close()

		u, err := rt.catalog.CreateUser(ctx, types.Actor{Username: "cli"}, types.CreateUserInput{
			Username:  args[0],
			Email:     mustString(cmd, "email"),
			Password:  password,
			FirstName: mustString(cmd, "first-name"),
			LastName:  mustString(cmd, "last-name"),
			Role:      mustString(cmd, "role"),
		})
		if err != nil {
			return err
		}
		color.Green("✅ Created %s user %s (%s)", u.Role, u.Username, u.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog users",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		rt, err := openRuntime(ctx, "user")
		if err != nil {
			return err
		}
		defer rt.close()

		page, err := rt.catalog.ListUsers(ctx, types.UserFilter{ListOptions: types.ListOptions{Limit: rt.cfg.Pagination.MaxLimit}})
		if err != nil {
			return err
		}
		for _, u := range page.Items {
			state := color.GreenString("active")
			if !u.IsActive {
				state = color.YellowString("inactive")
			}
			fmt.Printf("%-24s %-32s %-10s %s\n", u.Username, u.Email, u.Role, state)
		}
		if page.Pagination.Total > len(page.Items) {
			fmt.Printf("... and %d more\n", page.Pagination.Total-len(page.Items))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd, userListCmd)

	userAddCmd.Flags().String("email", "", "Email address (required)")
	userAddCmd.Flags().String("role", "VIEWER", "Role: ADMIN, MAINTAINER or VIEWER")
	userAddCmd.Flags().String("password", "", "Password (read from stdin when omitted)")
	userAddCmd.Flags().String("first-name", "", "First name")
	userAddCmd.Flags().String("last-name", "", "Last name")
}
