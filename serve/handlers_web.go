package serve

import (
	"archive/zip"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
)

// webHandler serves the dashboard frontend out of the ZIP archive named
// in the config. The archive is opened lazily so the server runs fine
// without a built frontend.
func (s *Server) webHandler() http.Handler {
	if s.cfg.WebZip == "" {
		return placeholderHandler()
	}
	zr, err := zip.OpenReader(s.cfg.WebZip)
	if err != nil {
		slog.Warn("frontend archive unavailable", "path", s.cfg.WebZip, "error", err)
		return placeholderHandler()
	}
	return archiveHandler(zr)
}

// archiveHandler serves static files from the archive and falls back to
// index.html for SPA routing.
func archiveHandler(dist fs.FS) http.Handler {
	fileServer := http.FileServerFS(dist)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "" || path == "/" {
			path = "index.html"
			r.URL.Path = "index.html"
		}

		// Hashed assets can be cached forever; index.html must revalidate.
		if strings.HasPrefix(path, "assets/") {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}

		if f, err := dist.Open(strings.TrimPrefix(path, "/")); err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}

		// SPA fallback.
		w.Header().Set("Cache-Control", "no-cache")
		r.URL.Path = "index.html"
		fileServer.ServeHTTP(w, r)
	})
}

func placeholderHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(placeholderHTML))
	})
}

const placeholderHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Botmaster</title>
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body { font-family: system-ui, -apple-system, sans-serif; background: #0a0a0b; color: #e4e4e7; display: flex; align-items: center; justify-content: center; min-height: 100vh; }
    .container { text-align: center; max-width: 600px; padding: 2rem; }
    h1 { font-size: 2rem; margin-bottom: 0.5rem; background: linear-gradient(135deg, #818cf8, #a78bfa); -webkit-background-clip: text; -webkit-text-fill-color: transparent; }
    p { color: #a1a1aa; margin-bottom: 1.5rem; }
    .api-link { color: #818cf8; text-decoration: none; border: 1px solid #27272a; padding: 0.75rem 1.5rem; border-radius: 0.5rem; display: inline-block; transition: all 0.2s; }
    .api-link:hover { border-color: #818cf8; background: rgba(129, 140, 248, 0.1); }
    code { background: #18181b; padding: 0.2rem 0.4rem; border-radius: 0.25rem; font-size: 0.875rem; }
  </style>
</head>
<body>
  <div class="container">
    <h1>Botmaster</h1>
    <p>The dashboard frontend is not installed. The REST API is available.</p>
    <p>Place the built frontend at <code>data/dist.zip</code> and restart.</p>
    <a class="api-link" href="/api/dashboard/runtime">View Runtime Stats</a>
  </div>
</body>
</html>
`
