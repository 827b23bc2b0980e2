package stencilview

import (
	"embed"
	"html/template"
)

//go:embed viewer.html
var viewerFS embed.FS

// pageTemplate renders the viewer shell with the session's initial state
// embedded as JSON.
var pageTemplate = template.Must(template.ParseFS(viewerFS, "viewer.html"))
