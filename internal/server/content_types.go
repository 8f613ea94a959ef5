package server

import (
	"mime"
	"net/http"
	"strings"
)

const (
	jsonContentType = "application/json; charset=utf-8"
	textContentType = "text/plain; charset=utf-8"
)

// maxFormMemory is kept in memory while parsing multipart bodies; larger
// parts spill to temporary files.
const maxFormMemory = 32 << 20

func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

func isJSONRequest(r *http.Request) bool {
	return mediaType(r) == "application/json"
}

// parseForm accepts multipart and urlencoded bodies. Multipart temp files
// are removed when the request finishes.
func parseForm(r *http.Request) error {
	if mediaType(r) == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return err
		}
		return nil
	}
	return r.ParseForm()
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

// formValue reports a trimmed form field and whether it was sent at all.
func formValue(r *http.Request, key string) (string, bool) {
	if r.MultipartForm != nil {
		if values, ok := r.MultipartForm.Value[key]; ok && len(values) > 0 {
			return strings.TrimSpace(values[0]), true
		}
	}
	if values, ok := r.PostForm[key]; ok && len(values) > 0 {
		return strings.TrimSpace(values[0]), true
	}
	return "", false
}
