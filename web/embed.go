package web

import "embed"

// TemplatesFS embeds HTML templates for server-side rendering: page files at
// the top level, htmx fragments under partials/.
//
//go:embed templates/*.html templates/partials/*.html
var TemplatesFS embed.FS

// StaticFS embeds static assets (css/js/images).
//
//go:embed static/*
var StaticFS embed.FS
