// Package web embeds the dashboard templates.
package web

import "embed"

// Templates holds the HTML templates under templates/.
//
//go:embed templates/*.html
var Templates embed.FS

// Pages maps page names to the template files they are built from.
var Pages = map[string][]string{
	"dashboard.html": {"templates/layout.html", "templates/dashboard.html"},
}
