// Package neurotriage provides embedded assets for production builds.
package neurotriage

import "embed"

// TemplateFS holds the UI templates for production builds.
// In dev mode (IsDev=true), templates are loaded from disk for hot reloading.
//
//go:embed all:frontend/templates
var TemplateFS embed.FS

// StaticFS holds static assets (stylesheets, scripts) for production builds.
//
//go:embed all:frontend/static
var StaticFS embed.FS
