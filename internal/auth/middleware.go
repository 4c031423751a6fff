package auth

import (
	"errors"
	"net/http"

	"storefront/internal/apperr"
	"storefront/internal/store"
	"storefront/internal/token"
)

// RequireAuth authenticates the access token and resolves it to an
// identity record before the wrapped handler runs. An expired access
// token is rejected like any other; callers must use the refresh
// endpoint explicitly, the gate never auto-refreshes.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken := bearerOrCookie(r, AccessCookie)
		if accessToken == "" {
			h.respondErr(w, r, apperr.New(apperr.Unauthenticated, "no access token provided"))
			return
		}

		identityID, err := h.signer.Verify(accessToken, token.KindAccess)
		if err != nil {
			h.respondErr(w, r, err)
			return
		}

		user, err := h.users.FindByID(r.Context(), identityID)
		if err != nil {
			// A deleted account with a still-valid token is unauthenticated,
			// not a 404.
			if errors.Is(err, store.ErrNotFound) {
				err = apperr.Wrap(apperr.Unauthenticated, "user not found", err)
			}
			h.respondErr(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// RequireAdmin rejects any authenticated identity lacking the admin role.
// It must run inside RequireAuth.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			h.respondErr(w, r, apperr.New(apperr.Unauthenticated, "no access token provided"))
			return
		}
		if !user.HasAdminRole() {
			h.respondErr(w, r, apperr.New(apperr.Forbidden, "admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
