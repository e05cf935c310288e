package domain

import "context"

// Role is a user's role within one tenant
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// AuthorizedTenant is one company the current user may act as. It comes from
// the membership view and is read-only for the application.
type AuthorizedTenant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Subdomain string `json:"subdomain,omitempty"`
	PlanTier  string `json:"planTier,omitempty"`
	Role      Role   `json:"role"`
}

// MembershipRepository lists the tenants a user belongs to
type MembershipRepository interface {
	ListAuthorized(ctx context.Context, userID string) ([]AuthorizedTenant, error)
}

// Option is one dropdown entry returned by the option RPCs
type Option struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// RentTransaction is a bank transaction booked as rent
type RentTransaction struct {
	ID          string
	Date        string
	Amount      string
	Payer       string
	Partner     string
	Property    string
	Description string
}

// LedgerTransaction is a bank transaction as the monthly summary sees it
type LedgerTransaction struct {
	ID       string
	Date     string
	Amount   string
	Category string
	Partner  string
}
