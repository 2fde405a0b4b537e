package httpx

import (
	"context"
	"html"
	"log/slog"
	"net/http"

	domainauth "github.com/target/microshop-ui/internal/domain/auth"
	"github.com/target/microshop-ui/internal/domain/model"
	apperrors "github.com/target/microshop-ui/internal/errors"
	"github.com/target/microshop-ui/internal/http/ui/viewmodel"
	"github.com/target/microshop-ui/internal/service"
)

const (
	siteName       = "MicroShop"
	errMsgFixBelow = "Please fix the errors below."
)

// CatalogService is the product surface the UI needs.
type CatalogService interface {
	ListProducts(ctx context.Context, token string) ([]model.Product, error)
	GetProduct(ctx context.Context, token string, id int64) (*model.Product, error)
	CreateProduct(ctx context.Context, token string, req model.ProductRequest) (*model.Product, error)
	UpdateProduct(ctx context.Context, token string, id int64, req model.ProductRequest) (*model.Product, error)
	DeleteProduct(ctx context.Context, token string, id int64) error
}

// OrdersService is the order surface the UI needs.
type OrdersService interface {
	PlaceOrder(ctx context.Context, token string, req model.OrderRequest) (*model.Order, error)
	ListMine(ctx context.Context, token string) ([]model.Order, error)
	ListAll(ctx context.Context, token string) ([]model.Order, error)
}

var (
	_ CatalogService = (*service.CatalogService)(nil)
	_ OrdersService  = (*service.OrderService)(nil)
)

// UIHandlers serves browser-facing routes.
type UIHandlers struct {
	T       *TemplateRenderer
	Catalog CatalogService
	Orders  OrdersService
	// LoginRequired makes the pending page follow the login challenge automatically.
	LoginRequired bool
	IsDev         bool
	Logger        *slog.Logger
}

func (h *UIHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// PageMeta contains metadata for page rendering.
type PageMeta struct {
	Title       string
	PageTitle   string
	CurrentPage string
}

func pageTitle(title string) string {
	if title == "" {
		return siteName
	}
	return title + " - " + siteName
}

// buildLayout derives the shared chrome from the request's session snapshot.
// Nothing role-dependent is filled in while the session is uninitialized.
func buildLayout(r *http.Request, meta PageMeta) viewmodel.Layout {
	s := SessionFromContext(r.Context())
	layout := viewmodel.Layout{
		Title:       pageTitle(meta.Title),
		PageTitle:   meta.PageTitle,
		CurrentPage: meta.CurrentPage,
		CSRFToken:   GetCSRFToken(r),
		Initialized: s.Initialized,
		Nav:         NavLinks(s, meta.CurrentPage),
	}
	switch {
	case s.Initialized && s.Authenticated:
		layout.IsAuthenticated = true
		layout.User = &viewmodel.User{Username: s.Username, Roles: s.Roles.Strings()}
	case s.Initialized:
		target := r.URL.RequestURI()
		if r.Method != http.MethodGet {
			target = "/"
		}
		layout.LoginURL = LoginChallenge(target)
	}
	return layout
}

// basePageData constructs the common page data map with session context.
func basePageData(r *http.Request, meta PageMeta) map[string]any {
	layout := buildLayout(r, meta)
	data := map[string]any{
		"Title":           layout.Title,
		"PageTitle":       layout.PageTitle,
		"CurrentPage":     layout.CurrentPage,
		"CSRFToken":       layout.CSRFToken,
		"Initialized":     layout.Initialized,
		"IsAuthenticated": layout.IsAuthenticated,
		"Nav":             layout.Nav,
		"LoginURL":        layout.LoginURL,
	}
	if layout.User != nil {
		data["User"] = layout.User
	}
	return data
}

// sessionToken returns the bearer token for gateway calls, or "" when anonymous.
func sessionToken(r *http.Request) string {
	return SessionFromContext(r.Context()).Token
}

// renderPage writes a page with htmx partial support.
func (h *UIHandlers) renderPage(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	if !WantsPartial(r) {
		if err := h.T.RenderFull(w, status, data); err != nil {
			h.logAndRenderTemplateError(w, r, err, "full page render")
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	SetHXTrigger(w, "nav:activate", map[string]string{"path": r.URL.Path})
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
	}

	title, _ := data["Title"].(string)
	header, _ := data["PageTitle"].(string)
	page, _ := data["CurrentPage"].(string)
	// <title> lets htmx update document.title on partial swaps.
	if _, err := w.Write([]byte(`<title>` + html.EscapeString(title) + `</title>` +
		`<h1 id="header-title" class="header-title" hx-swap-oob="outerHTML">` + html.EscapeString(header) + `</h1>`)); err != nil {
		h.logger().Error("failed to write partial header", "error", err)
		return
	}
	if err := h.T.ExecuteTemplate(w, ContentTemplateFor(page), data); err != nil {
		h.logger().Error("partial content render failed", "error", err, "path", r.URL.Path)
	}
}

// RenderPending renders the neutral placeholder shown while a guarded page waits
// for the session, or for the user to sign in.
func (h *UIHandlers) RenderPending(w http.ResponseWriter, r *http.Request, v PendingView) {
	autoLogin := h.LoginRequired && v.LoginURL != ""
	if IsHTMX(r) && autoLogin {
		SetHXRedirect(w, v.LoginURL)
		w.WriteHeader(http.StatusOK)
		return
	}

	data := basePageData(r, PageMeta{Title: v.Section.Label, PageTitle: v.Section.Label, CurrentPage: v.Section.Page})
	data["Pending"] = v
	data["AutoLogin"] = autoLogin
	data["RefreshURL"] = r.URL.RequestURI()

	name := "pending-page"
	if WantsPartial(r) {
		name = "pending-content"
	}
	w.Header().Set("Cache-Control", "no-store")
	if err := h.T.RenderNamed(w, http.StatusOK, name, data); err != nil {
		h.logAndRenderTemplateError(w, r, err, "pending render")
	}
}

// renderErrorPage renders a standalone status page.
func (h *UIHandlers) renderErrorPage(w http.ResponseWriter, r *http.Request, status int, heading, message string) {
	data := basePageData(r, PageMeta{Title: heading, PageTitle: heading})
	data["Code"] = status
	data["Heading"] = heading
	data["Message"] = message
	if h.T == nil {
		http.Error(w, message, status)
		return
	}
	if err := h.T.RenderError(w, status, data); err != nil {
		http.Error(w, message, status)
	}
}

// userMessage returns the text shown inline for a failed gateway call.
// Validation errors keep their detail so the user sees which rule failed.
func userMessage(err error) string {
	if apperrors.IsValidation(err) {
		return err.Error()
	}
	return apperrors.Message(err)
}

// canBuy reports whether the session may place orders.
func canBuy(r *http.Request) bool {
	return domainauth.HasRole(SessionFromContext(r.Context()), domainauth.RoleClient)
}

// logAndRenderTemplateError logs template errors and renders them in dev mode.
func (h *UIHandlers) logAndRenderTemplateError(w http.ResponseWriter, r *http.Request, err error, context string) {
	h.logger().Error("template rendering failed",
		"error", err,
		"context", context,
		"path", r.URL.Path,
		"method", r.Method,
	)

	if h.IsDev {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<pre class="template-error">` + html.EscapeString(context+": "+err.Error()) + `</pre>`))
		return
	}
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
