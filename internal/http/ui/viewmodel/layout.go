package viewmodel

// User represents the authenticated user exposed to templates.
type User struct {
	Username string
	Roles    []string
}

// NavLink is one entry of the session-aware navigation bar.
type NavLink struct {
	Path   string
	Label  string
	Page   string
	Active bool
}

// Layout captures shared chrome metadata (titles, navigation, auth state).
// While Initialized is false nothing role-dependent is rendered.
type Layout struct {
	Title       string
	PageTitle   string
	CurrentPage string
	CSRFToken   string

	Initialized     bool
	IsAuthenticated bool
	User            *User
	Nav             []NavLink
	LoginURL        string
}

// LayoutProvider exposes layout metadata for renderer utilities.
type LayoutProvider interface {
	LayoutData() *Layout
}
