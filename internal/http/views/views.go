// Package views embeds the HTML templates and static assets served by the
// web process.
package views

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates public
var files embed.FS

// Templates parses every page. Pages are addressed by file name, e.g.
// "login.tmpl"; shared blocks live in layout.tmpl.
func Templates() (*template.Template, error) {
	return template.New("").ParseFS(files, "templates/*.tmpl", "templates/*/*.tmpl")
}

// Public is the /public asset tree.
func Public() (fs.FS, error) {
	return fs.Sub(files, "public")
}
