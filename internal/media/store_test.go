package media

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/treefix50/estate/internal/content"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func fileHeader(t *testing.T, name string, body []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	t.Cleanup(func() { _ = req.MultipartForm.RemoveAll() })
	return req.MultipartForm.File["image"][0]
}

func newTestStore(t *testing.T, maxSize int64) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), Options{MaxSize: maxSize, CacheSize: 16})
	require.NoError(t, err)
	return s
}

func TestSaveAndRemove(t *testing.T) {
	s := newTestStore(t, 1<<20)

	ref, err := s.Save(content.KindGallery, fileHeader(t, "My Lobby (1).png", pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(ref), "/uploads/gallery/"))
	assert.True(t, strings.HasSuffix(string(ref), "-My-Lobby-1-.png"))
	assert.True(t, s.Exists(ref))

	full, err := s.Resolve(ref)
	require.NoError(t, err)
	data, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	require.NoError(t, s.Remove(ref))
	assert.False(t, s.Exists(ref))
	assert.NoError(t, s.Remove(ref), "removing twice is fine")
}

func TestSaveRejects(t *testing.T) {
	s := newTestStore(t, 64)

	_, err := s.Save(content.KindProject, fileHeader(t, "notes.txt", []byte("hello")))
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = s.Save(content.KindProject, fileHeader(t, "fake.jpg", []byte("plain text pretending")))
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = s.Save(content.KindProject, fileHeader(t, "big.png", append(pngHeader, make([]byte, 100)...)))
	assert.ErrorIs(t, err, ErrTooLarge)

	ref, err := s.Save(content.KindProject, fileHeader(t, "logo.svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`)))
	require.NoError(t, err)
	assert.True(t, s.Exists(ref))
}

func TestResolveRejectsTraversal(t *testing.T) {
	s := newTestStore(t, 0)

	for _, ref := range []content.ImageRef{
		"/uploads/../secret.db",
		"/uploads/gallery/../../etc/passwd",
		"/etc/passwd",
		"/uploads/",
		`/uploads/gallery\..\x.png`,
	} {
		_, err := s.Resolve(ref)
		assert.ErrorIs(t, err, ErrOutsideRoot, "ref %q", ref)
		assert.False(t, s.Exists(ref))
	}

	full, err := s.Resolve("uploads/insight/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "insight", "a.jpg"), full)
}

func TestFilterExistingAndCheck(t *testing.T) {
	s := newTestStore(t, 0)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "project", "a.jpg"), pngHeader, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "project", "c.jpg"), pngHeader, 0o644))

	got := s.FilterExisting([]content.ImageRef{"/uploads/project/a.jpg", "/uploads/project/b.jpg", "/uploads/project/c.jpg"})
	assert.Equal(t, []content.ImageRef{"/uploads/project/a.jpg", "/uploads/project/c.jpg"}, got)
	assert.Equal(t, content.ImageRef(""), s.Check("/uploads/project/b.jpg"))
	assert.Equal(t, content.ImageRef("/uploads/project/a.jpg"), s.Check("/uploads/project/a.jpg"))
	assert.Equal(t, content.ImageRef(""), s.Check(""))
}

func TestInvalidateDropsCachedAnswer(t *testing.T) {
	s := newTestStore(t, 0)
	ref := content.ImageRef("/uploads/carousel/late.jpg")

	assert.False(t, s.Exists(ref))
	full := filepath.Join(s.Root(), "carousel", "late.jpg")
	require.NoError(t, os.WriteFile(full, pngHeader, 0o644))
	assert.False(t, s.Exists(ref), "answer is cached")

	s.Invalidate(full)
	assert.True(t, s.Exists(ref))
}

func TestAliasedRefsShareOneCacheEntry(t *testing.T) {
	s := newTestStore(t, 0)
	full := filepath.Join(s.Root(), "project", "a.jpg")
	require.NoError(t, os.WriteFile(full, pngHeader, 0o644))

	aliases := []content.ImageRef{
		"/uploads/project/a.jpg",
		"uploads/project/a.jpg",
		"/uploads/project//a.jpg",
		"/uploads/project/./a.jpg",
		"/uploads//project/a.jpg",
	}
	for _, ref := range aliases {
		assert.True(t, s.Exists(ref), "ref %q", ref)
		assert.Equal(t, content.ImageRef("/uploads/project/a.jpg"), s.Check(ref), "ref %q", ref)
	}

	require.NoError(t, os.Remove(full))
	s.Invalidate(full)
	for _, ref := range aliases {
		assert.False(t, s.Exists(ref), "ref %q still reported after delete", ref)
	}
}

func TestRemoveAliasDropsCanonicalEntry(t *testing.T) {
	s := newTestStore(t, 0)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "gallery", "b.png"), pngHeader, 0o644))
	require.True(t, s.Exists("/uploads/gallery/b.png"))

	require.NoError(t, s.Remove("uploads/gallery/./b.png"))
	assert.False(t, s.Exists("/uploads/gallery/b.png"))
}

func TestCanonical(t *testing.T) {
	s := newTestStore(t, 0)
	ref, err := s.Canonical("uploads/insight//x.webp")
	require.NoError(t, err)
	assert.Equal(t, content.ImageRef("/uploads/insight/x.webp"), ref)

	_, err = s.Canonical("/uploads/../x.webp")
	assert.ErrorIs(t, err, ErrOutsideRoot)
	assert.Equal(t, []content.ImageRef{}, s.FilterExisting([]content.ImageRef{"/elsewhere/x.png"}))
}

func TestDisableCacheReadsDisk(t *testing.T) {
	s := newTestStore(t, 0)
	ref := content.ImageRef("/uploads/insight/late.png")
	full := filepath.Join(s.Root(), "insight", "late.png")
	require.False(t, s.Exists(ref))

	s.DisableCache()
	require.NoError(t, os.WriteFile(full, pngHeader, 0o644))
	assert.True(t, s.Exists(ref))
	require.NoError(t, os.Remove(full))
	assert.False(t, s.Exists(ref))
	assert.Zero(t, s.exists.Len())
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"photo.jpg":           "photo.jpg",
		"../../etc/passwd":    "passwd",
		`C:\Users\me\pic.png`: "pic.png",
		"  spaced name .webp": "spaced-name-.webp",
		"...":                 "image",
		"über-haus.JPG":       "ber-haus.JPG",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeName(in), "SanitizeName(%q)", in)
	}
}

func TestWatcherInvalidatesOnChange(t *testing.T) {
	s := newTestStore(t, 0)
	w, err := NewWatcher(s, nil)
	require.NoError(t, err)

	seen := make(chan fsnotify.Event, 16)
	w.events = func(ev fsnotify.Event) {
		select {
		case seen <- ev:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	ref := content.ImageRef("/uploads/gallery/new.png")
	full := filepath.Join(s.Root(), "gallery", "new.png")
	require.False(t, s.Exists(ref))

	// keep writing until the watch is registered and an event arrives
	require.Eventually(t, func() bool {
		_ = os.WriteFile(full, pngHeader, 0o644)
		select {
		case <-seen:
			return true
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)

	assert.True(t, s.Exists(ref))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherRunFailsOnMissingRoot(t *testing.T) {
	s := newTestStore(t, 0)
	w, err := NewWatcher(s, nil)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(s.Root()))

	assert.Error(t, w.Run(context.Background()))
}
