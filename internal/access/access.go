// Package access answers whether a caller may touch a tenant's data.
// It is consulted at the HTTP boundary; retrieval and ingestion code
// never embeds access decisions.
package access

import (
	"context"
	"errors"
)

// ErrUnknownPrincipal indicates a request with no usable identity.
var ErrUnknownPrincipal = errors.New("unknown principal")

// Principal identifies a caller.
type Principal struct {
	// ID is the caller's identifier (user or service account).
	ID string

	// TenantID is the tenant the caller belongs to.
	TenantID string

	// Admin grants access to every tenant.
	Admin bool
}

// Checker decides whether a principal may access a tenant's data.
type Checker interface {
	CanAccess(ctx context.Context, principal Principal, tenantID string) (bool, error)
}

// Config configures the static checker.
type Config struct {
	// AdminPrincipals are caller ids granted cross-tenant access
	// regardless of the Admin flag on the request.
	AdminPrincipals []string `koanf:"admin_principals"`
}

// StaticChecker allows a principal its own tenant, and configured
// admins every tenant.
type StaticChecker struct {
	admins map[string]struct{}
}

// NewStaticChecker builds a checker from configuration.
func NewStaticChecker(config Config) *StaticChecker {
	admins := make(map[string]struct{}, len(config.AdminPrincipals))
	for _, id := range config.AdminPrincipals {
		admins[id] = struct{}{}
	}
	return &StaticChecker{admins: admins}
}

// CanAccess implements Checker.
func (c *StaticChecker) CanAccess(_ context.Context, principal Principal, tenantID string) (bool, error) {
	if principal.ID == "" {
		return false, ErrUnknownPrincipal
	}
	if _, ok := c.admins[principal.ID]; ok {
		return true, nil
	}
	if principal.Admin {
		return true, nil
	}
	return principal.TenantID == tenantID, nil
}

var _ Checker = (*StaticChecker)(nil)
