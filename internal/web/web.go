package web

import (
	"embed"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed dist/*
var content embed.FS

// indexFile is the SPA root document.
const indexFile = "index.html"

// assetTypes covers the extensions the bundler emits that the system mime
// table may not know about.
var assetTypes = map[string]string{
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".eot":   "application/vnd.ms-fontobject",
	".svg":   "image/svg+xml",
	".json":  "application/json",
	".map":   "application/json",
	".js":    "text/javascript; charset=utf-8",
	".css":   "text/css; charset=utf-8",
}

func init() {
	for ext, typ := range assetTypes {
		//nolint:errcheck // extensions above are well-formed
		mime.AddExtensionType(ext, typ)
	}
}

// Handler returns an http.Handler that serves the console SPA.
//
// When dir is non-empty and exists, assets are served from the filesystem.
// Otherwise the embedded shell is used. Panics if the embedded assets cannot
// be loaded (build error).
func Handler(dir string) http.Handler {
	fsys := Source(dir)
	fileServer := http.FileServer(http.FS(fsys))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upath := path.Clean("/" + r.URL.Path)

		if upath != "/" && isFile(fsys, strings.TrimPrefix(upath, "/")) {
			fileServer.ServeHTTP(w, r)
			return
		}

		serveIndex(w, r, fsys)
	})
}

// Source resolves the filesystem Handler serves from.
func Source(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}

	dist, err := fs.Sub(content, "dist")
	if err != nil {
		panic(fmt.Sprintf("web: failed to load embedded assets: %v", err))
	}
	return dist
}

// isFile reports whether name exists in fsys and is a regular file.
// Directories fall through to the SPA index so no listing is ever rendered.
func isFile(fsys fs.FS, name string) bool {
	if !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}

// serveIndex writes the SPA root document with no-cache headers.
func serveIndex(w http.ResponseWriter, r *http.Request, fsys fs.FS) {
	body, err := fs.ReadFile(fsys, indexFile)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	// The root document references hashed bundles, so it must always be revalidated.
	w.Header().Set("Cache-Control", "no-cache, must-revalidate")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(body) //nolint:errcheck // Best-effort write; client may have gone
	}
}
