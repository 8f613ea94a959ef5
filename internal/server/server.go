// Package server exposes the site collections, the back-office user
// management and uploaded images over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/treefix50/estate/internal/auth"
	"github.com/treefix50/estate/internal/content"
	"github.com/treefix50/estate/internal/mail"
	"github.com/treefix50/estate/internal/media"
)

const (
	errInternal   = "Internal server error"
	errBadRequest = "Bad Request"
	errReadOnly   = "database is read-only"
)

type Options struct {
	Store  ContentStore
	Auth   *auth.Manager
	Media  *media.Store
	Mailer mail.Mailer
	Logger *zap.Logger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider

	CORSOrigins []string
	// RequireAuth guards every mutating route and user management with a
	// bearer session.
	RequireAuth     bool
	LoginInterval   time.Duration
	ContactInterval time.Duration
	Version         string
}

type Server struct {
	addr        string
	store       ContentStore
	auth        *auth.Manager
	media       *media.Store
	mailer      mail.Mailer
	logger      *zap.Logger
	tracer      trace.Tracer
	requireAuth bool
	version     string
	started     time.Time

	loginLimiter   *RateLimiter
	contactLimiter *RateLimiter

	handler http.Handler
	http    *http.Server
}

func New(addr string, opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server: content store is required")
	}
	if opts.Auth == nil {
		return nil, errors.New("server: auth manager is required")
	}
	if opts.Media == nil {
		return nil, errors.New("server: media store is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Mailer == nil {
		opts.Mailer = mail.LogMailer{Logger: opts.Logger}
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		addr:           addr,
		store:          opts.Store,
		auth:           opts.Auth,
		media:          opts.Media,
		mailer:         opts.Mailer,
		logger:         opts.Logger,
		tracer:         opts.TracerProvider.Tracer("github.com/treefix50/estate/internal/server"),
		requireAuth:    opts.RequireAuth,
		version:        opts.Version,
		started:        time.Now(),
		loginLimiter:   NewRateLimiter(opts.LoginInterval, 0),
		contactLimiter: NewRateLimiter(opts.ContactInterval, 0),
	}

	r := mux.NewRouter()
	r.Use(s.traceMiddleware)
	s.routes(r)

	s.handler = newCORS(opts.CORSOrigins).Handler(
		logMiddleware(recoverMiddleware(r, s.logger), s.logger),
	)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(r *mux.Router) {
	r.HandleFunc("/", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.PathPrefix(media.URLPrefix).HandlerFunc(s.handleUpload).Methods(http.MethodGet, http.MethodHead)

	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	r.HandleFunc("/contactForm", s.handleContact).Methods(http.MethodPost)

	s.userRoutes(r)

	r.HandleFunc("/projects", s.handleListProjects).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}", s.handleGetProject).Methods(http.MethodGet)
	r.HandleFunc("/projects", s.protect(s.handleCreateProject)).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id}", s.protect(s.handleUpdateProject)).Methods(http.MethodPut)
	r.HandleFunc("/projects/{id}", s.protect(s.handleDeleteProject)).Methods(http.MethodDelete)

	r.HandleFunc("/insights", s.handleListInsights).Methods(http.MethodGet)
	r.HandleFunc("/insights/{id}", s.handleGetInsight).Methods(http.MethodGet)
	r.HandleFunc("/insights", s.protect(s.handleCreateInsight)).Methods(http.MethodPost)
	r.HandleFunc("/insights/{id}", s.protect(s.handleUpdateInsight)).Methods(http.MethodPut)
	r.HandleFunc("/insights/{id}", s.protect(s.handleDeleteInsight)).Methods(http.MethodDelete)

	r.HandleFunc("/gallery", s.handleListGallery).Methods(http.MethodGet)
	r.HandleFunc("/gallery/{id}", s.handleGetGalleryItem).Methods(http.MethodGet)
	r.HandleFunc("/gallery", s.protect(s.handleCreateGalleryItem)).Methods(http.MethodPost)
	r.HandleFunc("/gallery/{id}", s.protect(s.handleUpdateGalleryItem)).Methods(http.MethodPut)
	r.HandleFunc("/gallery/{id}", s.protect(s.handleDeleteGalleryItem)).Methods(http.MethodDelete)

	r.HandleFunc("/carousel", s.handleListCarousel).Methods(http.MethodGet)
	r.HandleFunc("/carousel/{id}", s.handleGetCarouselImage).Methods(http.MethodGet)
	r.HandleFunc("/carousel", s.protect(s.handleCreateCarouselImage)).Methods(http.MethodPost)
	r.HandleFunc("/carousel/{id}", s.protect(s.handleUpdateCarouselImage)).Methods(http.MethodPut)
	r.HandleFunc("/carousel/{id}", s.protect(s.handleDeleteCarouselImage)).Methods(http.MethodDelete)

	registerRecords(s, r, "/testimonials", records[content.Testimonial]{
		noun:   "Testimonial",
		list:   s.store.ListTestimonials,
		get:    s.store.GetTestimonial,
		create: s.store.CreateTestimonial,
		update: s.store.UpdateTestimonial,
		remove: s.store.DeleteTestimonial,
		setID:  func(t *content.Testimonial, id string) { t.ID = id },
	})
	registerRecords(s, r, "/services", records[content.Service]{
		noun:   "Service",
		list:   s.store.ListServices,
		get:    s.store.GetService,
		create: s.store.CreateService,
		update: s.store.UpdateService,
		remove: s.store.DeleteService,
		setID:  func(sv *content.Service, id string) { sv.ID = id },
	})
	registerRecords(s, r, "/achievements", records[content.Achievement]{
		noun:   "Achievement",
		list:   s.store.ListAchievements,
		get:    s.store.GetAchievement,
		create: s.store.CreateAchievement,
		update: s.store.UpdateAchievement,
		remove: s.store.DeleteAchievement,
		setID:  func(a *content.Achievement, id string) { a.ID = id },
	})

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Addr() string { return s.addr }

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", textContentType)
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	database := "ok"
	if err := s.store.Ping(r.Context()); err != nil {
		database = "unavailable"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service":  "estate",
		"status":   "running",
		"version":  s.version,
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"database": database,
		"readOnly": s.store.ReadOnly(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeMessage(w, status, message)
}

// writeStoreError maps domain errors to a status code. notFound is the
// message for a missing record.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var invalid *content.ValidationError
	switch {
	case errors.Is(err, content.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		writeError(w, notFound, http.StatusNotFound)
	case errors.As(err, &invalid):
		writeError(w, invalid.Error(), http.StatusBadRequest)
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, "User with this email already exists", http.StatusConflict)
	case errors.Is(err, auth.ErrMissingFields):
		writeError(w, "Email and password are required", http.StatusBadRequest)
	case errors.Is(err, media.ErrUnsupportedImage), errors.Is(err, media.ErrOutsideRoot):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, media.ErrTooLarge):
		writeError(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, errMalformedBody):
		writeError(w, errBadRequest, http.StatusBadRequest)
	case errors.Is(err, errUnsupportedBody):
		writeError(w, "Unsupported Media Type", http.StatusUnsupportedMediaType)
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to send
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, errInternal, http.StatusInternalServerError)
	}
}

var (
	errMalformedBody   = errors.New("server: malformed request body")
	errUnsupportedBody = errors.New("server: unsupported content type")
)

func decodeJSONBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}
