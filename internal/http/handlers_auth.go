package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/target/microshop-ui/internal/service"
)

// AuthServiceInterface defines the auth operations the handlers drive.
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (*service.CompleteLoginResult, error)
	Logout(ctx context.Context, clientID, postLogoutRedirect string) string
}

var _ AuthServiceInterface = (*service.AuthService)(nil)

const (
	cookieOAuthState        = "oauth_state"
	cookieOAuthNonce        = "oauth_nonce"
	cookieOAuthVerifier     = "oauth_verifier"
	cookiePostLoginRedirect = "post_login_redirect"
	oauthCookieMaxAge       = 600

	signedOutPath = "/auth/signed-out"
)

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc      AuthServiceInterface
	Sessions SessionResolver
	Cookies  CookieConfig
	// BaseURL is the externally visible origin, used for the provider's post-logout redirect.
	BaseURL string
	Logger  *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login handles the login initiation endpoint.
// GET /auth/login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	result, err := h.Svc.BeginLogin(r.Context(), redirectURI)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "begin login failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_failed",
			Err:     err,
		})
		return
	}

	h.setTempCookie(w, r, cookieOAuthState, result.State)
	h.setTempCookie(w, r, cookieOAuthNonce, result.Nonce)
	if result.Verifier != "" {
		h.setTempCookie(w, r, cookieOAuthVerifier, result.Verifier)
	}
	h.setTempCookie(w, r, cookiePostLoginRedirect, redirectURI)

	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback handles the OAuth callback endpoint.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "provider_error",
			Err:     errors.New(strings.TrimSpace(e + " " + q.Get("error_description"))),
		})
		return
	}
	code := q.Get("code")
	state := q.Get("state")
	if code == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_code",
			Err:     errors.New("authorization code is required"),
		})
		return
	}
	if state == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_state",
			Err:     errors.New("state parameter is required"),
		})
		return
	}

	stateCookie, err := r.Cookie(cookieOAuthState)
	if err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("invalid or missing state parameter"),
		})
		return
	}
	nonceCookie, err := r.Cookie(cookieOAuthNonce)
	if err != nil || nonceCookie.Value == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_nonce",
			Err:     errors.New("missing nonce parameter"),
		})
		return
	}

	var verifier string
	if c, cookieErr := r.Cookie(cookieOAuthVerifier); cookieErr == nil {
		verifier = c.Value
	}

	res, err := h.Svc.CompleteLogin(r.Context(), service.CompleteLoginInput{
		ClientID: ClientIDFromContext(r.Context()),
		Code:     code,
		State:    state,
		Nonce:    nonceCookie.Value,
		Verifier: verifier,
	})
	if err != nil {
		h.logger().WarnContext(r.Context(), "login completion failed", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrLoginNotAuthenticated) {
			status = http.StatusUnauthorized
		}
		WriteError(w, ErrorParams{
			Code:    status,
			ErrCode: "login_completion_failed",
			Err:     err,
		})
		return
	}

	// The session is bound to a fresh id; the pre-login cookie must not carry it.
	setClientCookie(w, r, h.Cookies, res.ClientID)
	h.clearCookie(w, r, cookieOAuthState)
	h.clearCookie(w, r, cookieOAuthNonce)
	h.clearCookie(w, r, cookieOAuthVerifier)
	http.Redirect(w, r, h.postLoginRedirect(w, r), http.StatusFound)
}

// Logout handles the logout endpoint.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	redirectURI := r.FormValue("redirect_uri")
	if redirectURI == "" {
		redirectURI = r.URL.Query().Get("redirect_uri")
	}
	redirectURI = safeRedirectPath(redirectURI)

	u := url.URL{Path: signedOutPath, RawQuery: url.Values{"redirect_uri": {redirectURI}}.Encode()}
	signedOutURL := u.String()

	target := h.Svc.Logout(r.Context(), ClientIDFromContext(r.Context()), strings.TrimRight(h.BaseURL, "/")+signedOutURL)
	if target == "" {
		target = signedOutURL
	}

	isAJAX := strings.Contains(r.Header.Get("Accept"), "application/json") ||
		IsHTMX(r) ||
		strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
	if isAJAX {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"redirect_to": target,
		})
		return
	}

	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Status returns the client's session snapshot without waiting for initialization.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	id := ClientIDFromContext(r.Context())
	if h.Sessions == nil || id == "" {
		WriteJSON(w, http.StatusOK, map[string]any{
			"state":         service.StateUninitialized.String(),
			"initialized":   false,
			"authenticated": false,
		})
		return
	}

	s := h.Sessions.Resolve(r.Context(), id, 0)
	body := map[string]any{
		"state":         h.Sessions.StateOf(id).String(),
		"initialized":   s.Initialized,
		"authenticated": s.Authenticated,
	}
	if s.Authenticated {
		body["username"] = s.Username
		body["roles"] = s.Roles.Strings()
		if !s.ExpiresAt.IsZero() {
			body["expires_at"] = s.ExpiresAt
		}
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, body)
}

// clearCookie mirrors the attributes used when setting so browsers drop it.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.Cookies.Domain,
		HttpOnly: true,
		Secure:   h.Cookies.secure(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// setTempCookie stores a short-lived login flow value.
func (h *AuthHandlers) setTempCookie(w http.ResponseWriter, r *http.Request, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.Cookies.Domain,
		HttpOnly: true,
		Secure:   h.Cookies.secure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   oauthCookieMaxAge,
	})
}

// postLoginRedirect returns the saved destination and clears its cookie.
func (h *AuthHandlers) postLoginRedirect(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(cookiePostLoginRedirect)
	if err != nil {
		return "/"
	}
	h.clearCookie(w, r, cookiePostLoginRedirect)
	return safeRedirectPath(c.Value)
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(candidate, "//") {
		return "/"
	}
	return candidate
}
