package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/barflow/barflow/internal/domain/auth"
)

// require authenticates the request and admits only principals holding one
// of roles. Staff principals must be bound to a bar.
func (h *Handler) require(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := h.authn.Authenticate(r)
			if err != nil {
				if !errors.Is(err, auth.ErrForbidden) && !errors.Is(err, auth.ErrUnauthenticated) {
					err = errors.Wrap(auth.ErrUnauthenticated, err.Error())
				}
				writeError(w, r, err)
				return
			}
			if !p.HasRole(roles...) || (p.Role == auth.RoleStaff && p.BarID == "") {
				writeError(w, r, auth.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

// optionalPrincipal authenticates public routes that show more to admins.
// Missing or invalid credentials yield an anonymous customer.
func (h *Handler) optionalPrincipal(r *http.Request) auth.Principal {
	p, err := h.authn.Authenticate(r)
	if err != nil {
		return auth.Principal{Role: auth.RoleCustomer}
	}
	return p
}

// principal returns the principal stored by require.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

// manage fails with auth.ErrForbidden unless the caller may act on barID.
func manage(r *http.Request, barID string) error {
	if !principal(r).CanManageBar(barID) {
		return auth.ErrForbidden
	}
	return nil
}
