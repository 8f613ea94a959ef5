package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/treefix50/estate/internal/auth"
	"github.com/treefix50/estate/internal/content"
	"github.com/treefix50/estate/internal/media"
	"github.com/treefix50/estate/internal/storage"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type recordingMailer struct {
	mu   sync.Mutex
	sent []content.Inquiry
	err  error
}

func (m *recordingMailer) Send(_ context.Context, q content.Inquiry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, q)
	return nil
}

type fixture struct {
	t       *testing.T
	srv     *Server
	store   *storage.Store
	auth    *auth.Manager
	media   *media.Store
	mailer  *recordingMailer
	handler http.Handler
	token   string
}

func newFixture(t *testing.T, configure func(*Options)) *fixture {
	t.Helper()

	store, err := storage.Open(":memory:", storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	uploads, err := media.NewStore(t.TempDir(), media.Options{MaxSize: 1 << 20})
	require.NoError(t, err)

	manager := auth.NewManager(store, time.Hour)
	mailer := &recordingMailer{}
	opts := Options{
		Store:       store,
		Auth:        manager,
		Media:       uploads,
		Mailer:      mailer,
		Logger:      zap.NewNop(),
		RequireAuth: true,
	}
	if configure != nil {
		configure(&opts)
	}
	srv, err := New("127.0.0.1:0", opts)
	require.NoError(t, err)

	f := &fixture{t: t, srv: srv, store: store, auth: manager, media: uploads, mailer: mailer, handler: srv.Handler()}
	_, err = manager.CreateUser("admin@example.com", "secret", true)
	require.NoError(t, err)
	return f
}

func (f *fixture) login() {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/login", jsonBody(f.t, map[string]string{"email": "admin@example.com", "password": "secret"}), "application/json")
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	f.token = resp.Token
}

func (f *fixture) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	f.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) doJSON(method, path string, v any) *httptest.ResponseRecorder {
	f.t.Helper()
	return f.do(method, path, jsonBody(f.t, v), "application/json")
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, rec)["message"].(string)
}

type upload struct {
	field, filename string
	body            []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...upload) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, file := range files {
		part, err := mw.CreateFormFile(file.field, file.filename)
		require.NoError(t, err)
		_, err = part.Write(file.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (f *fixture) onDisk(ref content.ImageRef) bool {
	f.t.Helper()
	full, err := f.media.Resolve(ref)
	require.NoError(f.t, err)
	_, err = os.Stat(full)
	return err == nil
}

func TestStatusAndHealth(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Version = "1.2.3" })

	rec := f.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = f.do(http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[map[string]any](t, rec)
	assert.Equal(t, "estate", status["service"])
	assert.Equal(t, "1.2.3", status["version"])
	assert.Equal(t, "ok", status["database"])

	rec = f.do(http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", message(t, rec))
}

func TestLoginSessionLogout(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.doJSON(http.MethodPost, "/login", map[string]string{"email": "admin@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect email or password", message(t, rec))

	rec = f.doJSON(http.MethodPost, "/login", map[string]string{"email": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.doJSON(http.MethodPost, "/login", map[string]string{"email": "Admin@Example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, "success", resp["message"])
	assert.Len(t, resp["token"], 64)
	assert.NotEmpty(t, resp["expiresAt"])
	f.token = resp["token"].(string)

	rec = f.do(http.MethodGet, "/session", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@example.com", decode[auth.Session](t, rec).Email)

	rec = f.do(http.MethodPost, "/logout", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/session", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRateLimited(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.LoginInterval = time.Hour })

	creds := map[string]string{"email": "admin@example.com", "password": "wrong"}
	assert.Equal(t, http.StatusUnauthorized, f.doJSON(http.MethodPost, "/login", creds).Code)

	rec := f.doJSON(http.MethodPost, "/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestLoginMissingFieldsNotRateLimited(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.LoginInterval = time.Hour })

	rec := f.doJSON(http.MethodPost, "/login", map[string]string{"email": "admin@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	creds := map[string]string{"email": "admin@example.com", "password": "wrong"}
	assert.Equal(t, http.StatusUnauthorized, f.doJSON(http.MethodPost, "/login", creds).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.doJSON(http.MethodPost, "/login", creds).Code)
}

func TestWritesRequireSession(t *testing.T) {
	f := newFixture(t, nil)
	body := map[string]any{"name": "Asha", "message": "Great plots", "rating": 5}

	rec := f.doJSON(http.MethodPost, "/testimonials", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", message(t, rec))

	// reads stay public
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/testimonials", nil, "").Code)

	f.login()
	assert.Equal(t, http.StatusCreated, f.doJSON(http.MethodPost, "/testimonials", body).Code)
}

func TestWritesOpenWhenAuthDisabled(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.RequireAuth = false })

	rec := f.doJSON(http.MethodPost, "/services", map[string]string{"title": "Site visits"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/manage-users", nil, "").Code)
}

func TestRecordCollections(t *testing.T) {
	f := newFixture(t, nil)
	f.login()

	rec := f.doJSON(http.MethodPost, "/testimonials", map[string]any{"name": "Asha", "designation": "Owner", "message": "Smooth purchase", "rating": 4})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[content.Testimonial](t, rec)
	require.NotEmpty(t, created.ID)

	rec = f.doJSON(http.MethodPut, "/testimonials/"+created.ID, map[string]any{"rating": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[content.Testimonial](t, rec)
	assert.Equal(t, 5, updated.Rating)
	assert.Equal(t, "Asha", updated.Name, "fields missing from the body are kept")
	assert.Equal(t, created.ID, updated.ID)

	rec = f.doJSON(http.MethodPut, "/testimonials/"+created.ID, map[string]any{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, message(t, rec), "rating")

	rec = f.doJSON(http.MethodPost, "/achievements", map[string]any{"title": "Happy families", "count": "1200+"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodGet, "/achievements", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	achievements := decode[[]content.Achievement](t, rec)
	require.Len(t, achievements, 1)
	assert.Equal(t, "1200+", achievements[0].Count)

	rec = f.doJSON(http.MethodPost, "/services", map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodDelete, "/testimonials/"+created.ID, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Testimonial deleted successfully", message(t, rec))

	rec = f.do(http.MethodGet, "/testimonials/"+created.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Testimonial not found", message(t, rec))
}

func TestProjectLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	f.login()

	body, ct := multipartBody(t, map[string]string{
		"name":           "Palm Grove",
		"location":       "Kochi",
		"amenities":      `["Clubhouse","Pool"]`,
		"specifications": `{"plots":"24"}`,
	},
		upload{"mainImage", "front.png", pngBytes},
		upload{"images", "a.png", pngBytes},
		upload{"images", "b.png", pngBytes},
	)
	rec := f.do(http.MethodPost, "/projects", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[content.Project](t, rec)
	assert.Equal(t, []string{"Clubhouse", "Pool"}, p.Amenities)
	assert.Equal(t, map[string]string{"plots": "24"}, p.Specifications)
	require.NotEmpty(t, p.MainImage)
	require.Len(t, p.Images, 2)
	for _, ref := range p.AllImages() {
		assert.True(t, strings.HasPrefix(string(ref), "/uploads/project/"))
		assert.True(t, f.onDisk(ref))
	}

	// a file deleted behind the server's back disappears from reads
	full, err := f.media.Resolve(p.Images[0])
	require.NoError(t, err)
	require.NoError(t, os.Remove(full))
	f.media.Invalidate(full)
	rec = f.do(http.MethodGet, "/projects/"+p.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []content.ImageRef{p.Images[1]}, decode[content.Project](t, rec).Images)

	// keep b, drop main, add c
	existing, _ := json.Marshal([]content.ImageRef{p.Images[1]})
	deleted, _ := json.Marshal([]content.ImageRef{p.MainImage, "/uploads/gallery/not-ours.png"})
	body, ct = multipartBody(t, map[string]string{
		"location":       "Kochi North",
		"existingImages": string(existing),
		"deletedImages":  string(deleted),
	}, upload{"images", "c.png", pngBytes})
	rec = f.do(http.MethodPut, "/projects/"+p.ID, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[content.Project](t, rec)
	assert.Equal(t, "Palm Grove", updated.Name)
	assert.Equal(t, "Kochi North", updated.Location)
	assert.Empty(t, updated.MainImage)
	require.Len(t, updated.Images, 2)
	assert.Equal(t, p.Images[1], updated.Images[0])
	assert.False(t, f.onDisk(p.MainImage))

	rec = f.do(http.MethodDelete, "/projects/"+p.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Project deleted successfully", message(t, rec))
	for _, ref := range updated.Images {
		assert.False(t, f.onDisk(ref))
	}
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/projects/"+p.ID, nil, "").Code)
}

func TestProjectRejectsTooManyImages(t *testing.T) {
	f := newFixture(t, nil)
	f.login()

	files := make([]upload, 0, maxProjectImages+1)
	for i := 0; i <= maxProjectImages; i++ {
		files = append(files, upload{"images", "x.png", pngBytes})
	}
	body, ct := multipartBody(t, map[string]string{"name": "Crowded"}, files...)
	rec := f.do(http.MethodPost, "/projects", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	entries, err := os.ReadDir(filepath.Join(f.media.Root(), "project"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProjectJSONCreateStoresCanonicalRefs(t *testing.T) {
	f := newFixture(t, nil)
	f.login()
	full := filepath.Join(f.media.Root(), "project", "seed.png")
	require.NoError(t, os.WriteFile(full, pngBytes, 0o644))

	rec := f.doJSON(http.MethodPost, "/projects", map[string]any{
		"name":      "Seeded",
		"mainImage": "uploads/project/seed.png",
		"images":    []string{"/uploads/project//seed.png", "/uploads/project/missing.png"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[content.Project](t, rec)
	assert.Equal(t, content.ImageRef("/uploads/project/seed.png"), p.MainImage)
	assert.Equal(t, []content.ImageRef{"/uploads/project/seed.png"}, p.Images)
	assert.Equal(t, map[string]string{}, p.Specifications)
	assert.Contains(t, rec.Body.String(), `"specifications":{}`)

	require.NoError(t, os.Remove(full))
	f.media.Invalidate(full)
	rec = f.do(http.MethodGet, "/projects/"+p.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[content.Project](t, rec)
	assert.Empty(t, got.MainImage)
	assert.Empty(t, got.Images)
	assert.Contains(t, rec.Body.String(), `"specifications":{}`)
}

func TestProjectJSONUpdate(t *testing.T) {
	f := newFixture(t, nil)
	f.login()

	body, ct := multipartBody(t, map[string]string{"name": "P", "location": "Kochi"},
		upload{"images", "a.png", pngBytes},
		upload{"images", "b.png", pngBytes},
	)
	rec := f.do(http.MethodPost, "/projects", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[content.Project](t, rec)
	require.Len(t, p.Images, 2)

	rec = f.doJSON(http.MethodPut, "/projects/"+p.ID, map[string]any{
		"name":          "Renamed",
		"amenities":     []string{"Gym"},
		"deletedImages": []string{strings.TrimPrefix(string(p.Images[0]), "/")},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[content.Project](t, rec)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "Kochi", updated.Location, "fields missing from the body are kept")
	assert.Equal(t, []string{"Gym"}, updated.Amenities)
	assert.Equal(t, []content.ImageRef{p.Images[1]}, updated.Images)
	assert.False(t, f.onDisk(p.Images[0]))

	rec = f.do(http.MethodGet, "/projects/"+p.ID, nil, "")
	assert.Equal(t, "Renamed", decode[content.Project](t, rec).Name)

	rec = f.doJSON(http.MethodPut, "/projects/"+p.ID, map[string]any{"existingImages": []string{}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[content.Project](t, rec).Images)

	rec = f.do(http.MethodPut, "/projects/"+p.ID, strings.NewReader(`{"name":`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, "/projects/"+p.ID, strings.NewReader("name=Plain"), "text/plain")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	rec = f.do(http.MethodGet, "/projects/"+p.ID, nil, "")
	assert.Equal(t, "Renamed", decode[content.Project](t, rec).Name)
}

func TestInsightsAndGalleryImages(t *testing.T) {
	f := newFixture(t, nil)
	f.login()

	body, ct := multipartBody(t, map[string]string{"title": "Buying land", "author": "Team", "published": "true"},
		upload{"image", "cover.png", pngBytes})
	rec := f.do(http.MethodPost, "/insights", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	in := decode[content.Insight](t, rec)
	assert.True(t, in.Published)

	body, ct = multipartBody(t, map[string]string{"category": "Guides"})
	rec = f.do(http.MethodPut, "/insights/"+in.ID, body, ct)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[content.Insight](t, rec)
	assert.Equal(t, "Buying land", got.Title)
	assert.Equal(t, "Guides", got.Category)
	assert.Equal(t, in.Image, got.Image)

	body, ct = multipartBody(t, map[string]string{"title": "Lobby"})
	rec = f.do(http.MethodPost, "/gallery", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Image is required", message(t, rec))

	body, ct = multipartBody(t, map[string]string{"title": "Lobby"}, upload{"image", "lobby.png", pngBytes})
	rec = f.do(http.MethodPost, "/gallery", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code)
	item := decode[content.GalleryItem](t, rec)

	body, ct = multipartBody(t, nil, upload{"image", "lobby2.png", pngBytes})
	rec = f.do(http.MethodPut, "/gallery/"+item.ID, body, ct)
	require.Equal(t, http.StatusOK, rec.Code)
	replaced := decode[content.GalleryItem](t, rec)
	assert.Equal(t, "Lobby", replaced.Title)
	assert.NotEqual(t, item.Image, replaced.Image)
	assert.False(t, f.onDisk(item.Image), "replaced file is removed")

	full, err := f.media.Resolve(replaced.Image)
	require.NoError(t, err)
	require.NoError(t, os.Remove(full))
	f.media.Invalidate(full)
	rec = f.do(http.MethodGet, "/gallery", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"image":null`)

	rec = f.do(http.MethodDelete, "/insights/"+in.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.onDisk(in.Image))
}

func TestCarouselRoutes(t *testing.T) {
	f := newFixture(t, nil)
	f.login()

	body, ct := multipartBody(t, map[string]string{"deviceType": "desktop"})
	rec := f.do(http.MethodPost, "/carousel", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Image is required", message(t, rec))

	body, ct = multipartBody(t, map[string]string{"deviceType": "tablet"}, upload{"image", "hero.png", pngBytes})
	rec = f.do(http.MethodPost, "/carousel", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, message(t, rec), "Valid deviceType is required")
	entries, err := os.ReadDir(filepath.Join(f.media.Root(), "carousel"))
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads are not written")

	for _, device := range []string{"desktop", "mobile", "desktop"} {
		body, ct = multipartBody(t, map[string]string{"deviceType": device, "title": device}, upload{"image", "hero.png", pngBytes})
		rec = f.do(http.MethodPost, "/carousel", body, ct)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/carousel", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]content.CarouselImage](t, rec), 3)

	rec = f.do(http.MethodGet, "/carousel?deviceType=mobile", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	mobile := decode[[]content.CarouselImage](t, rec)
	require.Len(t, mobile, 1)
	assert.Equal(t, content.DeviceMobile, mobile[0].DeviceType)

	body, ct = multipartBody(t, map[string]string{"deviceType": "desktop"})
	rec = f.do(http.MethodPut, "/carousel/"+mobile[0].ID, body, ct)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content.DeviceDesktop, decode[content.CarouselImage](t, rec).DeviceType)

	rec = f.do(http.MethodDelete, "/carousel/"+mobile[0].ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.onDisk(mobile[0].Image))
	assert.Equal(t, "Image not found", message(t, f.do(http.MethodDelete, "/carousel/"+mobile[0].ID, nil, "")))
}

func TestServeUploads(t *testing.T) {
	f := newFixture(t, nil)
	full := filepath.Join(f.media.Root(), "gallery", "pic.png")
	require.NoError(t, os.WriteFile(full, pngBytes, 0o644))

	rec := f.do(http.MethodGet, "/uploads/gallery/pic.png", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, pngBytes, rec.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/uploads/gallery/missing.png", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/uploads/gallery", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, `/uploads/gallery/..%5C..%5Csecret`, nil, "").Code)
}

func TestUserManagement(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/users", nil, "").Code)
	f.login()

	rec := f.doJSON(http.MethodPost, "/add-user", map[string]string{"email": "sales@example.com", "password": "pw"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[struct {
		Message string    `json:"message"`
		User    auth.User `json:"user"`
	}](t, rec)
	assert.Equal(t, "User added successfully", created.Message)
	assert.True(t, created.User.IsAdmin)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = f.doJSON(http.MethodPost, "/users", map[string]string{"email": "SALES@example.com", "password": "pw"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User with this email already exists", message(t, rec))

	rec = f.doJSON(http.MethodPost, "/users", map[string]string{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email and password are required", message(t, rec))

	rec = f.do(http.MethodGet, "/manage-users", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]auth.User](t, rec), 2)

	rec = f.doJSON(http.MethodPut, "/update-user/"+created.User.ID, map[string]string{"email": "admin@example.com", "password": "pw"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email already in use", message(t, rec))

	rec = f.doJSON(http.MethodPut, "/users/"+created.User.ID, map[string]string{"email": "team@example.com", "password": "pw2"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.doJSON(http.MethodPost, "/login", map[string]string{"email": "team@example.com", "password": "pw2"})
	assert.Equal(t, http.StatusOK, rec.Code)

	session, err := f.auth.ValidateSession(f.token)
	require.NoError(t, err)
	rec = f.do(http.MethodDelete, "/delete-user/"+session.UserID, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodDelete, "/users/"+created.User.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(http.MethodDelete, "/users/"+created.User.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", message(t, rec))
}

func TestNonAdminCannotManageUsers(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.auth.CreateUser("editor@example.com", "pw", false)
	require.NoError(t, err)
	session, err := f.auth.Login("editor@example.com", "pw")
	require.NoError(t, err)
	f.token = session.Token

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/users", nil, "").Code)
	// content writes only need a session
	assert.Equal(t, http.StatusCreated, f.doJSON(http.MethodPost, "/services", map[string]string{"title": "Legal help"}).Code)

	rec := f.doJSON(http.MethodPost, "/users/"+session.UserID+"/password", map[string]string{"oldPassword": "pw", "newPassword": "pw2"})
	assert.Equal(t, http.StatusOK, rec.Code)
	_, err = f.auth.Login("editor@example.com", "pw2")
	assert.NoError(t, err)
}

func TestContactForm(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.ContactInterval = time.Hour })

	rec := f.doJSON(http.MethodPost, "/contactForm", map[string]any{"formData": map[string]string{"name": "Ravi", "email": "not-an-email", "type": "site-visit"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(http.MethodPost, "/contactForm", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// rejected submissions leave the window open
	rec = f.doJSON(http.MethodPost, "/contactForm", map[string]any{"formData": map[string]string{
		"name": "Ravi", "email": "ravi@example.com", "phone": "+91 98", "type": "site-visit",
	}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Email sent successfully!", message(t, rec))
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "site-visit", f.mailer.sent[0].Type)

	rec = f.doJSON(http.MethodPost, "/contactForm", map[string]any{"formData": map[string]string{"name": "Ravi", "email": "ravi@example.com", "type": "call"}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestContactFormMailerFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.mailer.err = errors.New("resend down")

	rec := f.doJSON(http.MethodPost, "/contactForm", map[string]string{"name": "Ravi", "email": "ravi@example.com", "type": "call"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to send email", message(t, rec))
}

func TestTraceSpansUseRouteTemplate(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	f := newFixture(t, func(o *Options) { o.TracerProvider = provider })
	rec := f.do(http.MethodGet, "/projects/abc", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /projects/{id}", spans[0].Name())
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.CORSOrigins = []string{"https://admin.example.com"} })

	req := httptest.NewRequest(http.MethodOptions, "/projects", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestRecoverMiddleware(t *testing.T) {
	h := recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), zap.NewNop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errInternal, message(t, rec))
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(time.Second, 2)
	now := time.Unix(1000, 0)
	limiter.now = func() time.Time { return now }

	ok, _ := limiter.Allow("a")
	assert.True(t, ok)
	ok, wait := limiter.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	now = now.Add(400 * time.Millisecond)
	_, wait = limiter.Allow("a")
	assert.Equal(t, 600*time.Millisecond, wait)

	now = now.Add(time.Second)
	ok, _ = limiter.Allow("a")
	assert.True(t, ok)

	// the least recently seen key is forgotten once capacity is exceeded
	limiter.Allow("b")
	limiter.Allow("c")
	ok, _ = limiter.Allow("a")
	assert.True(t, ok)

	var disabled *RateLimiter
	ok, _ = disabled.Allow("x")
	assert.True(t, ok)
}
