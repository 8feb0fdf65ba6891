// Package fileserver implements River's static file-serving Service kind:
// a fixed base-path on disk, served read-only, with no directory listing
// and no index-file fallback. It intentionally does not reach for
// net/http.FileServer, whose directory-listing and redirect behavior don't
// match a reverse proxy's file-server semantics (a directory request is a
// 404, not a listing or a trailing-slash redirect).
package fileserver

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// contentTypeByExt is a small, fixed extension table. Anything not listed
// here is served as application/octet-stream; River does not shell out to
// libmagic or sniff file contents to guess a type.
var contentTypeByExt = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".json": "application/json",
	".txt":  "text/plain; charset=utf-8",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".wasm": "application/wasm",
	".pdf":  "application/pdf",
	".xml":  "application/xml",
}

// Handler serves files rooted at BasePath. It is safe for concurrent use.
type Handler struct {
	BasePath string
}

// New returns a Handler rooted at basePath. config.Validate only checks
// that basePath is non-empty; New does not check that it is absolute or
// that it names a directory.
func New(basePath string) *Handler {
	return &Handler{BasePath: basePath}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rel := filepath.FromSlash(strings.TrimPrefix(r.URL.Path, "/"))
	full := filepath.Join(h.BasePath, rel)

	// filepath.Join cleans ".." segments, so a request that climbed above
	// BasePath before cleaning lands outside it once cleaned. A raw
	// strings.HasPrefix(full, h.BasePath) would also accept a sibling
	// directory that merely shares BasePath as a string prefix (BasePath
	// "/srv/www" matching "/srv/wwwdata/secret"); comparing against
	// BasePath plus a trailing separator rules that out.
	if full != h.BasePath && !strings.HasPrefix(full, h.BasePath+string(filepath.Separator)) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	f, err := os.Open(full)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	ct := contentTypeByExt[strings.ToLower(filepath.Ext(full))]
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, f); err != nil {
		slog.Debug("fileserver: error streaming response", "path", full, "error", err)
	}
}
