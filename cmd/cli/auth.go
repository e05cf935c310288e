package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login --email <email>",
		Short: "Sign in and select a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(email) == "" {
				return errors.New("--email is required")
			}
			if password == "" {
				password = os.Getenv("ESTATEBOOKS_PASSWORD")
			}
			if password == "" {
				fmt.Fprint(a.out, "Password: ")
				line, err := bufio.NewReader(a.in).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			ctx := cmd.Context()
			result, err := a.client.Login(ctx, email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			name := result.DisplayName
			if name == "" {
				name = result.Email
			}
			fmt.Fprintf(a.out, "✓ Logged in as: %s\n", name)

			_, sel, err := a.tenantSession(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "✓ Tenant: %s (%s)\n", sel.Tenant.Name, sel.Role())
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or ESTATEBOOKS_PASSWORD)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the selected tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.client.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			fmt.Fprintln(a.out, "✓ Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and the active tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.client.SignedIn(a.sessionCookie) {
				fmt.Fprintln(a.out, "Not logged in")
				return nil
			}
			ctx := cmd.Context()
			me, err := a.client.Me(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "✓ Logged in as: %s <%s>\n", me.Username, me.Email)

			_, sel, err := a.tenantSession(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "  Tenant: %s (%s, %s)\n", sel.Tenant.Name, sel.TenantID, sel.Role())
			return nil
		},
	}
}
