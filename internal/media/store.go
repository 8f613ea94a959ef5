// Package media stores uploaded images on local disk and answers whether a
// referenced image still exists.
package media

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/treefix50/estate/internal/content"
)

// URLPrefix is where uploads are served and how image refs begin.
const URLPrefix = "/uploads/"

var (
	ErrOutsideRoot      = errors.New("media: path escapes upload directory")
	ErrUnsupportedImage = errors.New("media: unsupported image type")
	ErrTooLarge         = errors.New("media: file too large")
)

var allowedExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".avif": true, ".svg": true,
}

type Options struct {
	MaxSize   int64
	CacheSize int
	Logger    *zap.Logger
}

// Store keeps uploads under root/<kind>/ and caches existence checks.
type Store struct {
	root    string
	maxSize int64
	exists  *lru.Cache[string, bool]
	logger  *zap.Logger
	// uncached is set once nothing invalidates the cache any more.
	uncached atomic.Bool
}

func NewStore(root string, opts Options) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("media: resolve upload dir: %w", err)
	}
	for _, kind := range []content.Kind{content.KindProject, content.KindInsight, content.KindCarousel, content.KindGallery} {
		if err := os.MkdirAll(filepath.Join(abs, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("media: create upload dir: %w", err)
		}
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	cache, err := lru.New[string, bool](opts.CacheSize)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Store{root: abs, maxSize: opts.MaxSize, exists: cache, logger: opts.Logger}, nil
}

func (s *Store) Root() string { return s.root }

// Canonical rewrites ref to its /uploads/<kind>/<name> form. Refs that
// reach the same file through a missing leading slash, doubled slashes or
// dot segments all map to one canonical ref.
func (s *Store) Canonical(ref content.ImageRef) (content.ImageRef, error) {
	rel, err := s.relative(ref)
	if err != nil {
		return "", err
	}
	return content.ImageRef(URLPrefix + rel), nil
}

// Resolve maps an image ref to its file on disk.
func (s *Store) Resolve(ref content.ImageRef) (string, error) {
	rel, err := s.relative(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

// relative returns the cleaned slash path of ref below the upload root.
func (s *Store) relative(ref content.ImageRef) (string, error) {
	raw := string(ref)
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	if !strings.HasPrefix(raw, URLPrefix) || strings.Contains(raw, "\\") {
		return "", ErrOutsideRoot
	}
	rel := strings.TrimPrefix(raw, URLPrefix)
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", ErrOutsideRoot
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+rel), "/")
	if cleaned == "" {
		return "", ErrOutsideRoot
	}
	full := filepath.Join(s.root, filepath.FromSlash(cleaned))
	if !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return cleaned, nil
}

// Exists reports whether the file behind ref is present. Answers are cached
// under the canonical ref, which is what Invalidate drops.
func (s *Store) Exists(ref content.ImageRef) bool {
	if ref == "" {
		return false
	}
	canonical, err := s.Canonical(ref)
	if err != nil {
		return false
	}
	key := string(canonical)
	cache := !s.uncached.Load()
	if cache {
		if ok, cached := s.exists.Get(key); cached {
			return ok
		}
	}
	full, err := s.Resolve(canonical)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	ok := err == nil && info.Mode().IsRegular()
	if cache {
		s.exists.Add(key, ok)
	}
	return ok
}

// Check returns the canonical form of ref if its file exists and the empty
// ref otherwise.
func (s *Store) Check(ref content.ImageRef) content.ImageRef {
	if !s.Exists(ref) {
		return ""
	}
	canonical, _ := s.Canonical(ref)
	return canonical
}

// FilterExisting keeps the refs whose files exist, in order and in
// canonical form.
func (s *Store) FilterExisting(refs []content.ImageRef) []content.ImageRef {
	out := make([]content.ImageRef, 0, len(refs))
	for _, ref := range refs {
		if canonical := s.Check(ref); canonical != "" {
			out = append(out, canonical)
		}
	}
	return out
}

// Save writes an uploaded image into the folder for kind and returns its ref.
func (s *Store) Save(kind content.Kind, fh *multipart.FileHeader) (content.ImageRef, error) {
	if s.maxSize > 0 && fh.Size > s.maxSize {
		return "", fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, fh.Filename, fh.Size)
	}
	name := SanitizeName(fh.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExt[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, fh.Filename)
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	head = head[:n]
	if ext != ".svg" && !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, fh.Filename)
	}

	dir := filepath.Join(s.root, string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(head); err != nil {
		tmp.Close()
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	fileName := uuid.NewString() + "-" + name
	if err := os.Rename(tmp.Name(), filepath.Join(dir, fileName)); err != nil {
		return "", err
	}

	ref := content.ImageRef(URLPrefix + string(kind) + "/" + fileName)
	if !s.uncached.Load() {
		s.exists.Add(string(ref), true)
	}
	s.logger.Debug("upload saved", zap.String("ref", string(ref)), zap.Int64("size", fh.Size))
	return ref, nil
}

// Remove deletes the file behind ref. Missing files are not an error.
func (s *Store) Remove(ref content.ImageRef) error {
	if ref == "" {
		return nil
	}
	canonical, err := s.Canonical(ref)
	if err != nil {
		return err
	}
	full, _ := s.Resolve(canonical)
	s.exists.Remove(string(canonical))
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveAll deletes every ref, logging failures instead of stopping.
func (s *Store) RemoveAll(refs ...content.ImageRef) {
	for _, ref := range refs {
		if err := s.Remove(ref); err != nil {
			s.logger.Warn("remove upload failed", zap.String("ref", string(ref)), zap.Error(err))
		}
	}
}

// Invalidate drops the cached answer for a file on disk.
func (s *Store) Invalidate(fullPath string) {
	rel, err := filepath.Rel(s.root, fullPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	s.exists.Remove(URLPrefix + filepath.ToSlash(rel))
}

// Purge forgets every cached existence answer.
func (s *Store) Purge() { s.exists.Purge() }

// DisableCache purges the existence cache and makes every later Exists call
// stat the disk. Use it when changes on disk can no longer be observed.
func (s *Store) DisableCache() {
	if s.uncached.Swap(true) {
		return
	}
	s.exists.Purge()
	s.logger.Warn("upload existence cache disabled")
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeName reduces a client file name to a safe base name.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, ".-")
	if name == "" {
		return "image"
	}
	if len(name) > 100 {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:100-len(ext)] + ext
	}
	return name
}
