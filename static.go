package loom

import (
	"io/fs"
	"net/http"
	"strings"
)

// Static registers a GET route serving files from fsys under prefix. The
// registration is a trailing-wildcard route, so "/assets" serves a request
// for "/assets/css/app.css" from "css/app.css" in fsys. The file server
// takes over the connection; the staged response is not used.
func (a *App) Static(prefix string, fsys fs.FS) {
	prefix = strings.TrimSuffix(prefix, "/")
	h := http.StripPrefix(prefix, http.FileServerFS(fsys))
	a.Get(prefix+"/*", WrapHTTP(h))
}
