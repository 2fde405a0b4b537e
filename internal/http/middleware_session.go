package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/target/microshop-ui/internal/domain/auth"
	"github.com/target/microshop-ui/internal/service"
)

// ClientCookieName identifies one browser and, through it, one session machine.
const ClientCookieName = "microshop_client"

const clientCookieMaxAge = 400 * 24 * 3600

// SessionResolver returns a client's session snapshot, starting its
// initialization when needed. *service.SessionRegistry implements it.
type SessionResolver interface {
	Resolve(ctx context.Context, clientID string, wait time.Duration) domainauth.Session
	StateOf(clientID string) service.State
}

var _ SessionResolver = (*service.SessionRegistry)(nil)

// CookieConfig carries the attributes shared by the cookies the app sets.
type CookieConfig struct {
	Domain string
	Secure bool
}

func (c CookieConfig) secure(r *http.Request) bool {
	return c.Secure || requestIsHTTPS(r)
}

// ClientID ensures every request carries a client id, issuing the cookie on first visit.
func ClientID(cfg CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(ClientCookieName); err == nil {
				if parsed, parseErr := uuid.Parse(c.Value); parseErr == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				setClientCookie(w, r, cfg, id)
			}
			next.ServeHTTP(w, r.WithContext(SetClientIDInContext(r.Context(), id)))
		})
	}
}

func setClientCookie(w http.ResponseWriter, r *http.Request, cfg CookieConfig, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     ClientCookieName,
		Value:    id,
		Path:     "/",
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   cfg.secure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   clientCookieMaxAge,
	})
}

// SessionContextConfig configures SessionContext.
type SessionContextConfig struct {
	Sessions SessionResolver
	// Wait bounds how long a request waits for an initialization cycle
	// before rendering with whatever snapshot is current.
	Wait time.Duration
}

// SessionContext attaches the client's session snapshot to the request.
// It must run after ClientID.
func SessionContext(cfg SessionContextConfig) func(http.Handler) http.Handler {
	if cfg.Sessions == nil {
		panic("session context requires a session resolver")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ClientIDFromContext(r.Context())
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess := cfg.Sessions.Resolve(r.Context(), id, cfg.Wait)
			next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), sess)))
		})
	}
}
