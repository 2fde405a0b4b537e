// Package microshop embeds the storefront templates and static assets.
package microshop

import "embed"

// In dev mode the router reads these directories from disk instead.

//go:embed all:frontend/static
var StaticFS embed.FS

//go:embed all:frontend/templates
var TemplateFS embed.FS
