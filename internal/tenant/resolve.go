package tenant

import (
	"errors"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
)

var (
	// ErrNoTenant means the user has no tenant to act as; callers send the
	// user to the no-access flow instead of picking a default.
	ErrNoTenant = errors.New("no authorized tenant")
	// ErrNotAuthorized means a requested tenant is not in the user's list
	ErrNotAuthorized = errors.New("tenant not authorized for user")
)

// Source records where a selection came from
type Source string

const (
	SourceURL      Source = "url"
	SourceSaved    Source = "saved"
	SourceFirst    Source = "first"
	SourceFallback Source = "fallback"
)

// Selection is the active tenant of a session
type Selection struct {
	TenantID string                  `json:"tenantId"`
	Tenant   domain.AuthorizedTenant `json:"tenant"`
	Source   Source                  `json:"source"`
}

// Role returns the user's role in the selected tenant
func (s Selection) Role() domain.Role {
	return s.Tenant.Role
}

// ResolveInitial picks the active tenant: the URL parameter, then the saved
// preference, then the first authorized tenant. Candidates that are not
// authorized are skipped.
func ResolveInitial(authorized []domain.AuthorizedTenant, urlParam, saved string) (Selection, error) {
	if len(authorized) == 0 {
		return Selection{}, ErrNoTenant
	}
	if t, ok := Find(authorized, urlParam); ok {
		return Selection{TenantID: t.ID, Tenant: t, Source: SourceURL}, nil
	}
	if t, ok := Find(authorized, saved); ok {
		return Selection{TenantID: t.ID, Tenant: t, Source: SourceSaved}, nil
	}
	first := authorized[0]
	return Selection{TenantID: first.ID, Tenant: first, Source: SourceFirst}, nil
}

// Find looks up id in the authorized list
func Find(authorized []domain.AuthorizedTenant, id string) (domain.AuthorizedTenant, bool) {
	if id == "" {
		return domain.AuthorizedTenant{}, false
	}
	for _, t := range authorized {
		if t.ID == id {
			return t, true
		}
	}
	return domain.AuthorizedTenant{}, false
}
