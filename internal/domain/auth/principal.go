// Package auth turns request credentials into a Principal. The strategy is
// chosen once at startup: a development bypass or provider-issued JWTs.
package auth

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
)

// Sentinel errors returned by authenticators and role checks.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// Role is the coarse permission level of a principal.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return r, nil
	default:
		return "", errors.Errorf("unknown role %q", s)
	}
}

// Principal is the authenticated identity behind a request.
type Principal struct {
	Subject string
	Email   string
	Role    Role
	// BarID scopes staff to one tenant. Empty for admins and customers.
	BarID string
}

// HasRole reports whether the principal holds one of roles.
func (p Principal) HasRole(roles ...Role) bool {
	return slices.Contains(roles, p.Role)
}

// CanManageBar reports whether the principal may act on barID's orders and menu.
func (p Principal) CanManageBar(barID string) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleStaff:
		return p.BarID != "" && p.BarID == barID
	default:
		return false
	}
}

// BarScope returns the bar the principal is confined to, or "" when unscoped.
func (p Principal) BarScope() string {
	if p.Role == RoleAdmin {
		return ""
	}
	return p.BarID
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
