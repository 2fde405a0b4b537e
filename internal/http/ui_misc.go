package httpx

import (
	"errors"
	"net/http"
	"net/url"
)

// SignedOut renders a simple signed-out page with a Sign In button.
func (h *UIHandlers) SignedOut(w http.ResponseWriter, r *http.Request) {
	redirect := safeRedirectPath(r.URL.Query().Get("redirect_uri"))
	data := basePageData(r, PageMeta{Title: "Signed out", PageTitle: "Signed out"})
	data["LoginURL"] = LoginChallenge(redirect)
	if h.T == nil {
		http.Redirect(w, r, "/auth/login?redirect_uri="+url.QueryEscape(redirect), http.StatusSeeOther)
		return
	}
	if err := h.T.RenderNamed(w, http.StatusOK, "signed-out-page", data); err != nil {
		http.Redirect(w, r, "/auth/login?redirect_uri="+url.QueryEscape(redirect), http.StatusSeeOther)
	}
}

// AccessDenied renders the static 403 page the guard redirects to.
func (h *UIHandlers) AccessDenied(w http.ResponseWriter, r *http.Request) {
	if !IsBrowserRequest(r) {
		WriteError(w, ErrorParams{
			Code:    http.StatusForbidden,
			ErrCode: "forbidden",
			Err:     errors.New("you do not have permission to view this page"),
		})
		return
	}
	h.renderErrorPage(w, r, http.StatusForbidden, "403 - Access Denied", "You do not have permission to view this page.")
}

// NotFound answers browsers with an HTML page and API clients with JSON.
func (h *UIHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	if !IsBrowserRequest(r) {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "not_found",
			Err:     errors.New("not found"),
		})
		return
	}
	h.renderErrorPage(w, r, http.StatusNotFound, "404 - Page Not Found", "The page you're looking for doesn't exist.")
}
