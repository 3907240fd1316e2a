// Package web embeds the landing page and its static assets.
package web

import "embed"

// StaticFS holds static/index.html and the assets it references.
//
//go:embed static
var StaticFS embed.FS
