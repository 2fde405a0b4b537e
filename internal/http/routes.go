package httpx

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	microshop "github.com/target/microshop-ui"
	domainauth "github.com/target/microshop-ui/internal/domain/auth"
	"github.com/target/microshop-ui/internal/observability/metrics"
)

// RouterServices holds everything the HTTP router wires together.
type RouterServices struct {
	Auth     AuthServiceInterface
	Sessions SessionResolver
	Catalog  CatalogService
	Orders   OrdersService

	Metrics metrics.Recorder
	// MetricsHandler is mounted at /metrics when set (Prometheus backend).
	MetricsHandler http.Handler
	Readiness      []ReadinessCheck

	Cookies CookieConfig
	BaseURL string
	// InitWait bounds how long a request waits for its session before rendering pending.
	InitWait      time.Duration
	LoginRequired bool

	// TemplateFS and StaticFS override the embedded assets (tests, dev).
	TemplateFS fs.FS
	StaticFS   fs.FS
	IsDev      bool
	Logger     *slog.Logger
}

type route struct {
	pattern string
	handler http.HandlerFunc
}

// NewRouter builds the application handler. Probes, metrics and static assets
// bypass the session chain; everything else runs BrowserDetection, ClientID,
// SessionContext and CSRF before reaching the section routes.
func NewRouter(services RouterServices) (http.Handler, error) {
	if services.Auth == nil || services.Sessions == nil || services.Catalog == nil || services.Orders == nil {
		return nil, errors.New("router requires auth, sessions, catalog and orders")
	}
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	templateFS, staticFS, err := resolveAssetFS(services)
	if err != nil {
		return nil, err
	}
	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: templateFS,
		DevMode:    services.IsDev,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create template renderer: %w", err)
	}

	ui := &UIHandlers{
		T:             tr,
		Catalog:       services.Catalog,
		Orders:        services.Orders,
		LoginRequired: services.LoginRequired,
		IsDev:         services.IsDev,
		Logger:        logger.With("component", "ui"),
	}
	authHandlers := &AuthHandlers{
		Svc:      services.Auth,
		Sessions: services.Sessions,
		Cookies:  services.Cookies,
		BaseURL:  services.BaseURL,
		Logger:   logger.With("component", "auth_handlers"),
	}

	app := http.NewServeMux()
	registerAuthRoutes(app, authHandlers, ui)
	registerSectionRoutes(app, ui, services.Metrics)
	app.HandleFunc("GET /access-denied", ui.AccessDenied)
	app.HandleFunc("/", ui.NotFound)

	var appChain http.Handler = app
	appChain = CSRFProtection(CSRFConfig{CookieDomain: services.Cookies.Domain, Secure: services.Cookies.Secure, Logger: logger})(appChain)
	appChain = SessionContext(SessionContextConfig{Sessions: services.Sessions, Wait: services.InitWait})(appChain)
	appChain = ClientID(services.Cookies)(appChain)
	appChain = BrowserDetection()(appChain)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", healthHandler)
	root.HandleFunc("HEAD /healthz", healthHandler)
	root.Handle("GET /readyz", readinessHandler(services.Readiness, 0))
	if services.MetricsHandler != nil {
		root.Handle("GET /metrics", services.MetricsHandler)
	}
	root.Handle("GET /static/", staticHandler(staticFS, services.IsDev))
	root.Handle("/", appChain)
	return root, nil
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, ui *UIHandlers) {
	mux.HandleFunc("GET "+LoginPath, h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("GET "+signedOutPath, ui.SignedOut)
}

// sectionRoutes lists the routes belonging to each section, keyed by page id.
func sectionRoutes(ui *UIHandlers) map[string][]route {
	return map[string][]route{
		PageHome: {
			{pattern: "GET /{$}", handler: ui.Home},
		},
		PageMyOrders: {
			{pattern: "GET /my-orders", handler: ui.MyOrders},
		},
		PageAdminProducts: {
			{pattern: "GET /admin/products", handler: ui.AdminProducts},
			{pattern: "GET /admin/products/{id}/edit", handler: ui.EditProduct},
			{pattern: "POST /admin/products", handler: ui.CreateProduct},
			{pattern: "POST /admin/products/{id}", handler: ui.UpdateProduct},
			{pattern: "POST /admin/products/{id}/delete", handler: ui.DeleteProduct},
		},
		PageAdminOrders: {
			{pattern: "GET /admin/orders", handler: ui.AdminOrders},
		},
	}
}

// orderSection guards order placement from the catalog page.
var orderSection = Section{Path: "/", Label: "Home", Page: PageHome, Role: domainauth.RoleClient}

// registerSectionRoutes mounts every section's routes behind the guard derived
// from the same Sections entry that drives navigation.
func registerSectionRoutes(mux *http.ServeMux, ui *UIHandlers, rec metrics.Recorder) {
	routes := sectionRoutes(ui)
	for _, sec := range Sections {
		cfg := GuardConfig{Section: sec, Pending: ui, Metrics: rec}
		wrap := Guard(cfg)
		if sec.Public {
			wrap = RequireInitialized(cfg)
		}
		for _, rt := range routes[sec.Page] {
			mux.Handle(rt.pattern, wrap(rt.handler))
		}
	}
	mux.Handle("POST /orders", Guard(GuardConfig{Section: orderSection, Pending: ui, Metrics: rec})(http.HandlerFunc(ui.PlaceOrder)))
}

// resolveAssetFS picks template and static filesystems: explicit overrides,
// then the working tree in dev mode, then the embedded copies.
func resolveAssetFS(services RouterServices) (fs.FS, fs.FS, error) {
	templateFS, staticFS := services.TemplateFS, services.StaticFS
	if templateFS == nil {
		if services.IsDev {
			templateFS = os.DirFS(TemplatePathFromRoot)
		} else {
			sub, err := fs.Sub(microshop.TemplateFS, TemplatePathFromRoot)
			if err != nil {
				return nil, nil, fmt.Errorf("embedded templates: %w", err)
			}
			templateFS = sub
		}
	}
	if staticFS == nil {
		if services.IsDev {
			staticFS = os.DirFS(StaticPathFromRoot)
		} else {
			sub, err := fs.Sub(microshop.StaticFS, StaticPathFromRoot)
			if err != nil {
				return nil, nil, fmt.Errorf("embedded static assets: %w", err)
			}
			staticFS = sub
		}
	}
	return templateFS, staticFS, nil
}

// staticHandler serves /static/* with cache headers suited to the mode.
func staticHandler(fsys fs.FS, isDev bool) http.Handler {
	files := http.StripPrefix("/static/", http.FileServer(http.FS(fsys)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isDev {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		}
		files.ServeHTTP(w, r)
	})
}
