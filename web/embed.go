// Package web provides the embedded static assets: the browser tracking
// snippet served to tracked pages.
package web

import "embed"

//go:embed static
var staticFS embed.FS

// TrackingScript returns the embedded tracking snippet.
func TrackingScript() ([]byte, error) {
	return staticFS.ReadFile("static/tracking-script.js")
}
