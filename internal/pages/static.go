// ABOUTME: Serves embedded stylesheet and script assets under /static/
// ABOUTME: Sets explicit content types and conservative cache headers

package pages

import (
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

//go:embed static
var staticFS embed.FS

// mimeFromExt returns the MIME type for a file extension.
// Falls back to the standard library's MIME database,
// then to "application/octet-stream" if unknown.
func mimeFromExt(ext string) string {
	switch ext {
	case ".js", ".mjs":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

// StaticHandler serves the embedded static/ directory. Mount it with
// http.StripPrefix("/static/", ...).
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("pages: failed to create static sub filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No directory listings.
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}

		if ext := strings.ToLower(path.Ext(r.URL.Path)); ext != "" {
			w.Header().Set("Content-Type", mimeFromExt(ext))
		}
		w.Header().Set("Cache-Control", "no-cache")

		fileServer.ServeHTTP(w, r)
	})
}
