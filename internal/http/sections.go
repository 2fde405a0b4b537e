package httpx

import (
	domainauth "github.com/target/microshop-ui/internal/domain/auth"
	"github.com/target/microshop-ui/internal/http/ui/viewmodel"
)

// Section is one navigable area of the storefront. Routes and navigation are
// both derived from Sections so they cannot disagree about who sees what.
type Section struct {
	Path  string
	Label string
	Page  string
	// Role is required unless Public is set. An empty Role on a non-public
	// section only requires an authenticated session.
	Role   domainauth.Role
	Public bool
}

// Sections lists the storefront's top-level areas in navigation order.
var Sections = []Section{
	{Path: "/", Label: "Home", Page: PageHome, Public: true},
	{Path: "/admin/products", Label: "Manage Products", Page: PageAdminProducts, Role: domainauth.RoleAdmin},
	{Path: "/admin/orders", Label: "All Orders", Page: PageAdminOrders, Role: domainauth.RoleAdmin},
	{Path: "/my-orders", Label: "My Orders", Page: PageMyOrders, Role: domainauth.RoleClient},
}

// SectionFor returns the section rendering page.
func SectionFor(page string) (Section, bool) {
	for _, s := range Sections {
		if s.Page == page {
			return s, true
		}
	}
	return Section{}, false
}

// Visible reports whether the section is shown to s. It matches Guard: a
// visible section is one the guard would allow.
func (sec Section) Visible(s domainauth.Session) bool {
	if sec.Public {
		return true
	}
	return domainauth.Decide(s, sec.Role) == domainauth.DecisionAllow
}

// NavLinks builds the navigation bar for a session snapshot.
// While the session is uninitialized only public sections are listed.
func NavLinks(s domainauth.Session, currentPage string) []viewmodel.NavLink {
	links := make([]viewmodel.NavLink, 0, len(Sections))
	for _, sec := range Sections {
		if !sec.Visible(s) {
			continue
		}
		links = append(links, viewmodel.NavLink{
			Path:   sec.Path,
			Label:  sec.Label,
			Page:   sec.Page,
			Active: sec.Page == currentPage,
		})
	}
	return links
}
