package httpx

import (
	"errors"
	"net/http"
	"net/url"

	domainauth "github.com/target/microshop-ui/internal/domain/auth"
	"github.com/target/microshop-ui/internal/observability/metrics"
)

// LoginPath starts the identity provider login flow.
const LoginPath = "/auth/login"

// PendingView describes what a guarded request is waiting for.
type PendingView struct {
	Section Section
	// Initialized is false while the client's identity round trip is in flight.
	Initialized bool
	// LoginURL is the login challenge, set once the session is known to be anonymous.
	LoginURL string
}

// PendingResponder renders the neutral placeholder shown instead of guarded content.
type PendingResponder interface {
	RenderPending(w http.ResponseWriter, r *http.Request, v PendingView)
}

// GuardConfig configures Guard and RequireInitialized.
type GuardConfig struct {
	Section Section
	Pending PendingResponder
	Metrics metrics.Recorder
}

// Guard enforces the section's role. Pending sessions get the placeholder and
// never a redirect; sessions lacking the role are sent to the access denied page.
func Guard(cfg GuardConfig) func(http.Handler) http.Handler {
	rec := metrics.OrNop(cfg.Metrics)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := SessionFromContext(r.Context())
			decision := domainauth.Decide(s, cfg.Section.Role)
			rec.GuardDecision(cfg.Section.Page, decision.String())

			switch decision {
			case domainauth.DecisionAllow:
				next.ServeHTTP(w, r)
			case domainauth.DecisionDenyRedirect:
				denyRedirect(w, r)
			default:
				respondPending(w, r, cfg, s)
			}
		})
	}
}

// RequireInitialized serves public sections once the session is known,
// whether anonymous or not.
func RequireInitialized(cfg GuardConfig) func(http.Handler) http.Handler {
	rec := metrics.OrNop(cfg.Metrics)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := SessionFromContext(r.Context())
			if !s.Initialized {
				rec.GuardDecision(cfg.Section.Page, domainauth.DecisionPending.String())
				respondPending(w, r, cfg, s)
				return
			}
			rec.GuardDecision(cfg.Section.Page, domainauth.DecisionAllow.String())
			next.ServeHTTP(w, r)
		})
	}
}

// LoginChallenge is the login URL that returns to target after the callback.
func LoginChallenge(target string) string {
	return LoginPath + "?redirect_uri=" + url.QueryEscape(safeRedirectPath(target))
}

func respondPending(w http.ResponseWriter, r *http.Request, cfg GuardConfig, s domainauth.Session) {
	v := PendingView{Section: cfg.Section, Initialized: s.Initialized}
	if s.Initialized && !s.Authenticated {
		target := cfg.Section.Path
		if r.Method == http.MethodGet {
			target = r.URL.RequestURI()
		}
		v.LoginURL = LoginChallenge(target)
	}

	w.Header().Set("Cache-Control", "no-store")
	if !IsBrowserRequest(r) {
		if !v.Initialized {
			w.Header().Set("Retry-After", "1")
			WriteError(w, ErrorParams{
				Code:    http.StatusServiceUnavailable,
				ErrCode: "session_pending",
				Err:     errors.New("session is initializing"),
			})
			return
		}
		WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"error":     "unauthenticated",
			"message":   "authentication required",
			"login_url": v.LoginURL,
		})
		return
	}

	if cfg.Pending == nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Loading..."))
		return
	}
	cfg.Pending.RenderPending(w, r, v)
}

func denyRedirect(w http.ResponseWriter, r *http.Request) {
	switch {
	case IsHTMX(r):
		SetHXRedirect(w, domainauth.AccessDeniedPath)
		w.WriteHeader(http.StatusOK)
	case !IsBrowserRequest(r):
		WriteError(w, ErrorParams{
			Code:    http.StatusForbidden,
			ErrCode: "forbidden",
			Err:     errors.New("you do not have permission to access this resource"),
		})
	default:
		http.Redirect(w, r, domainauth.AccessDeniedPath, http.StatusSeeOther)
	}
}
