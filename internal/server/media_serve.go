package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/treefix50/estate/internal/content"
)

// handleUpload serves a stored image. Paths that leave the upload directory
// are reported as missing.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	path, err := s.media.Resolve(content.ImageRef(r.URL.Path))
	if err != nil {
		writeError(w, "file not found", http.StatusNotFound)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		writeError(w, "file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		writeError(w, "file stat failed", http.StatusInternalServerError)
		return
	}
	if !st.Mode().IsRegular() {
		writeError(w, "file not found", http.StatusNotFound)
		return
	}

	h := w.Header()
	if ct := imageContentType(path); ct != "" {
		h.Set("Content-Type", ct)
	}
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "public, max-age=86400")
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		// svg can carry script; never let it run in our origin
		h.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	}

	// ServeContent supports Range and conditional requests (os.File is seekable).
	http.ServeContent(w, r, filepath.Base(path), st.ModTime(), f)
}

// imageContentType covers the upload types some platforms' mime tables lack.
func imageContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	case ".svg":
		return "image/svg+xml"
	default:
		return ""
	}
}
