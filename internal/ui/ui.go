// Package ui serves a built single-page dashboard next to the JSON API.
package ui

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// DirFS opens a dashboard build directory, failing early when it has no
// index.html.
func DirFS(dir string) (fs.FS, error) {
	fsys := os.DirFS(dir)
	if _, err := fs.Stat(fsys, "index.html"); err != nil {
		return nil, err
	}
	return fsys, nil
}

// Handler serves fsys with SPA fallback. Static files are served directly.
// Paths without a file extension are treated as client-side routes and get
// index.html. Missing assets return 404.
func Handler(fsys fs.FS) http.Handler {
	fileServer := http.FileServerFS(fsys)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean(r.URL.Path)
		if p == "/" {
			fileServer.ServeHTTP(w, r)
			return
		}

		p = strings.TrimPrefix(p, "/")
		if _, err := fs.Stat(fsys, p); err == nil {
			fileServer.ServeHTTP(w, r)
			return
		}

		// An extension means a real asset that is missing.
		if strings.Contains(path.Base(p), ".") {
			http.NotFound(w, r)
			return
		}

		r2 := r.Clone(r.Context())
		r2.URL.Path = "/"
		fileServer.ServeHTTP(w, r2)
	})
}

// Mount combines the API with the dashboard: /api/ goes to api, everything
// else to the static files.
func Mount(api http.Handler, fsys fs.FS) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", api)
	mux.Handle("/", Handler(fsys))
	return mux
}
