package httpx

import (
	"context"

	domainauth "github.com/target/microshop-ui/internal/domain/auth"
)

// Context key types are unexported to avoid collisions across packages.
type (
	sessionKey  struct{}
	clientIDKey struct{}
)

// SetSessionInContext returns a child context that carries a copy of the session snapshot.
func SetSessionInContext(ctx context.Context, s domainauth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s.Clone())
}

// SessionFromContext returns the request's session snapshot. Without one the
// request is treated as uninitialized, so guards render the pending state.
func SessionFromContext(ctx context.Context) domainauth.Session {
	if s, ok := ctx.Value(sessionKey{}).(domainauth.Session); ok {
		return s
	}
	return domainauth.Anonymous(false)
}

// SetClientIDInContext stores the browser client id.
func SetClientIDInContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, id)
}

// ClientIDFromContext returns the browser client id, or "" when the ClientID middleware did not run.
func ClientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey{}).(string)
	return id
}
