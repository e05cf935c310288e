package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aryan0dhankhar/estatebooks/internal/client"
	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/tenant"
)

var errNoTenantAccess = errors.New("your account has no tenant access yet; ask an owner to invite you")

// tenantSession loads the user's tenants and resolves the active one from
// --tenant, the saved preference, or the first tenant in that order.
func (a *app) tenantSession(ctx context.Context) (*tenant.Context, tenant.Selection, error) {
	list, err := a.client.Tenants(ctx)
	if err != nil {
		if client.IsCode(err, "no_tenant_access") {
			return nil, tenant.Selection{}, errNoTenantAccess
		}
		return nil, tenant.Selection{}, err
	}

	tc := tenant.NewContext(a.client.Preferences(), a.client, a.reloadSections, a.logger)
	sel, err := tc.Initialize(ctx, list.Tenants, a.tenantFlag)
	if errors.Is(err, tenant.ErrNoTenant) {
		return nil, tenant.Selection{}, errNoTenantAccess
	}
	if err != nil {
		return nil, tenant.Selection{}, err
	}
	return tc, sel, nil
}

// reloadSections refetches every table under the new tenant and prints a
// row count per section.
func (a *app) reloadSections(ctx context.Context, sel tenant.Selection) error {
	sections, err := a.client.Sections(ctx, nil)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS")
	for _, s := range sections {
		switch {
		case s.Error != "":
			fmt.Fprintf(w, "%s\t✗ %s\n", s.Table, s.Error)
		case s.Data != nil:
			fmt.Fprintf(w, "%s\t%d\n", s.Table, len(s.Data.Rows))
		}
	}
	return w.Flush()
}

func newTenantsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "List and switch tenants",
	}
	cmd.AddCommand(newTenantsListCmd(a), newTenantsSwitchCmd(a), newTenantsCurrentCmd(a))
	return cmd
}

func newTenantsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tenants you belong to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tc, sel, err := a.tenantSession(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\tID\tNAME\tROLE\tPLAN")
			for _, t := range tc.Authorized() {
				marker := ""
				if t.ID == sel.TenantID {
					marker = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", marker, t.ID, t.Name, t.Role, t.PlanTier)
			}
			return w.Flush()
		},
	}
}

func newTenantsSwitchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <id|name>",
		Short: "Make another tenant the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tc, _, err := a.tenantSession(ctx)
			if err != nil {
				return err
			}
			target, ok := matchTenant(tc.Authorized(), args[0])
			if !ok {
				return fmt.Errorf("you are not a member of tenant %q", args[0])
			}
			if err := tc.Switch(ctx, target); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "✓ Switched to %s (%s)\n", target.Name, target.Role)
			return nil
		},
	}
}

func newTenantsCurrentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the active tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, sel, err := a.tenantSession(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s\t%s\t%s\t(%s)\n", sel.TenantID, sel.Tenant.Name, sel.Role(), sel.Source)
			return nil
		},
	}
}

// matchTenant finds a tenant by id, then by case-insensitive name
func matchTenant(authorized []domain.AuthorizedTenant, key string) (domain.AuthorizedTenant, bool) {
	if t, ok := tenant.Find(authorized, key); ok {
		return t, true
	}
	for _, t := range authorized {
		if strings.EqualFold(t.Name, key) {
			return t, true
		}
	}
	return domain.AuthorizedTenant{}, false
}
