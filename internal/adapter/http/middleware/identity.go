package middleware

import (
	"context"
	"net/http"
	"strings"
)

const (
	HeaderOrgID  = "X-Org-ID"
	HeaderUserID = "X-User-ID"
)

// Identity is the caller as asserted by the authenticating proxy in front
// of the API.
type Identity struct {
	OrgID  string
	UserID string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// RequireIdentity rejects requests that do not carry both identity headers.
func RequireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			OrgID:  strings.TrimSpace(r.Header.Get(HeaderOrgID)),
			UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
		}
		if id.OrgID == "" || id.UserID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing identity"}` + "\n"))
			return
		}
		next(w, r.WithContext(WithIdentity(r.Context(), id)))
	}
}
