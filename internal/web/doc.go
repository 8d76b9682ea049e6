// Package web serves the console single-page application.
//
// The bundler writes the compiled SPA (bundle.js, index.html, fonts, images)
// to a directory configured as web.dir. When that directory is missing the
// handler falls back to a minimal shell embedded with go:embed, so the server
// always has a root document to hand out.
//
// Every GET that doesn't match a file returns index.html with status 200 so
// client-side routing can take over.
package web
