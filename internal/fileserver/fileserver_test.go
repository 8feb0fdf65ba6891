package fileserver

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func setupRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hi</h1>"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "data.bin"), []byte{0x01, 0x02}, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return dir
}

func TestFileServer_ServesKnownExtension(t *testing.T) {
	h := New(setupRoot(t))
	req := httptest.NewRequest("GET", "/index.html", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Fatalf("content-type: got %q", ct)
	}
	if rec.Body.String() != "<h1>hi</h1>" {
		t.Fatalf("body: got %q", rec.Body.String())
	}
}

func TestFileServer_UnknownExtensionDefaultsOctetStream(t *testing.T) {
	h := New(setupRoot(t))
	req := httptest.NewRequest("GET", "/sub/data.bin", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("content-type: got %q, want application/octet-stream", ct)
	}
}

func TestFileServer_DirectoryRequestIs404(t *testing.T) {
	h := New(setupRoot(t))
	req := httptest.NewRequest("GET", "/sub", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Fatalf("status: got %d, want 404 for a directory request", rec.Code)
	}
}

func TestFileServer_PathTraversalRejected(t *testing.T) {
	h := New(setupRoot(t))
	req := httptest.NewRequest("GET", "/../../etc/passwd", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 403 {
		t.Fatalf("status: got %d, want 403 for a traversal attempt", rec.Code)
	}
}

func TestFileServer_SiblingDirectorySharingPrefixRejected(t *testing.T) {
	dir := setupRoot(t)
	// A sibling directory that merely shares dir as a string prefix (e.g.
	// dir "/tmp/xyz" and "/tmp/xyzdata") must not be reachable through it.
	sibling := dir + "data"
	if err := os.Mkdir(sibling, 0o755); err != nil {
		t.Fatalf("mkdir sibling: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(sibling) })
	if err := os.WriteFile(filepath.Join(sibling, "secret"), []byte("nope"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	h := New(dir)
	req := httptest.NewRequest("GET", "/../"+filepath.Base(sibling)+"/secret", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 403 {
		t.Fatalf("status: got %d, want 403 for a sibling-directory escape", rec.Code)
	}
}

func TestFileServer_MissingFileIs404(t *testing.T) {
	h := New(setupRoot(t))
	req := httptest.NewRequest("GET", "/nope.html", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
}
