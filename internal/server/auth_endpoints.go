package server

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/treefix50/estate/internal/auth"
)

type sessionKey struct{}

// sessionFrom returns the session attached by protect, if any.
func sessionFrom(ctx context.Context) (*auth.Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(*auth.Session)
	return session, ok && session != nil
}

func (s *Server) userRoutes(r *mux.Router) {
	r.HandleFunc("/users", s.protectAdmin(s.handleListUsers)).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", s.protectAdmin(s.handleGetUser)).Methods(http.MethodGet)
	r.HandleFunc("/users", s.protectAdmin(s.handleCreateUser)).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}", s.protectAdmin(s.handleUpdateUser)).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}", s.protectAdmin(s.handleDeleteUser)).Methods(http.MethodDelete)
	r.HandleFunc("/users/{id}/password", s.protect(s.handleUserPassword)).Methods(http.MethodPost)

	// paths used by the first admin dashboard
	r.HandleFunc("/manage-users", s.protectAdmin(s.handleListUsers)).Methods(http.MethodGet)
	r.HandleFunc("/add-user", s.protectAdmin(s.handleCreateUser)).Methods(http.MethodPost)
	r.HandleFunc("/update-user/{id}", s.protectAdmin(s.handleUpdateUser)).Methods(http.MethodPut)
	r.HandleFunc("/delete-user/{id}", s.protectAdmin(s.handleDeleteUser)).Methods(http.MethodDelete)
}

// protect rejects writes against a read-only database and, when auth is
// required, requests without a valid bearer session.
func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	return s.guard(next, false)
}

// protectAdmin is protect plus an admin check.
func (s *Server) protectAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.guard(next, true)
}

func (s *Server) guard(next http.HandlerFunc, admin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead && s.store.ReadOnly() {
			writeError(w, errReadOnly, http.StatusForbidden)
			return
		}
		if !s.requireAuth {
			next(w, r)
			return
		}
		session, err := s.auth.ValidateSession(extractToken(r))
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrTokenExpired) {
				s.logger.Error("validate session", zap.Error(err))
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="estate"`)
			writeError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if admin && !session.IsAdmin {
			writeError(w, "Admin access required", http.StatusForbidden)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	}
}

// limit applies a rate limiter keyed by client address. It reports whether
// the request may proceed.
func limit(w http.ResponseWriter, r *http.Request, limiter *RateLimiter) bool {
	ok, wait := limiter.Allow(clientIP(r))
	if ok {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	writeError(w, "Too many requests, please try again later", http.StatusTooManyRequests)
	return false
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := decodeJSONBody(r, &payload); err != nil {
		writeError(w, errBadRequest, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		writeError(w, "Email and password are required", http.StatusBadRequest)
		return
	}
	// malformed requests never reach the password check, so they are not counted
	if !limit(w, r, s.loginLimiter) {
		return
	}

	session, err := s.auth.Login(payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Info("login failed", zap.String("email", auth.NormalizeEmail(payload.Email)), zap.String("remote", clientIP(r)))
			writeError(w, "Incorrect email or password", http.StatusUnauthorized)
			return
		}
		s.writeStoreError(w, r, err, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "success",
		"token":     session.Token,
		"expiresAt": session.ExpiresAt.UTC().Format(time.RFC3339),
		"user": map[string]any{
			"id":      session.UserID,
			"email":   session.Email,
			"isAdmin": session.IsAdmin,
		},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := extractToken(r)
	if token == "" {
		writeError(w, "Missing authorization token", http.StatusUnauthorized)
		return
	}
	if err := s.auth.Logout(token); err != nil {
		s.writeStoreError(w, r, err, "Session not found")
		return
	}
	writeMessage(w, http.StatusOK, "Logged out")
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.auth.ValidateSession(extractToken(r))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrTokenExpired) {
			writeError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		s.writeStoreError(w, r, err, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.ListUsers()
	if err != nil {
		s.writeStoreError(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.GetUser(mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		credentials
		IsAdmin *bool `json:"isAdmin"`
	}
	if err := decodeJSONBody(r, &payload); err != nil {
		writeError(w, errBadRequest, http.StatusBadRequest)
		return
	}
	// every back-office account is an admin unless told otherwise
	isAdmin := payload.IsAdmin == nil || *payload.IsAdmin

	user, err := s.auth.CreateUser(payload.Email, payload.Password, isAdmin)
	if err != nil {
		s.writeStoreError(w, r, err, "User not found")
		return
	}
	s.logger.Info("user created", zap.String("id", user.ID), zap.String("email", user.Email))
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User added successfully",
		"user":    user,
	})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := decodeJSONBody(r, &payload); err != nil {
		writeError(w, errBadRequest, http.StatusBadRequest)
		return
	}

	user, err := s.auth.UpdateUser(mux.Vars(r)["id"], payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			writeError(w, "Email already in use", http.StatusConflict)
			return
		}
		s.writeStoreError(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user":    user,
	})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if session, ok := sessionFrom(r.Context()); ok && session.UserID == id {
		writeError(w, "Cannot delete your own account", http.StatusBadRequest)
		return
	}
	if err := s.auth.DeleteUser(id); err != nil {
		s.writeStoreError(w, r, err, "User not found")
		return
	}
	s.logger.Info("user deleted", zap.String("id", id))
	writeMessage(w, http.StatusOK, "User deleted successfully")
}

// handleUserPassword lets users change their own password. Admins may reset
// anyone else's without the old one.
func (s *Server) handleUserPassword(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	var payload struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSONBody(r, &payload); err != nil {
		writeError(w, errBadRequest, http.StatusBadRequest)
		return
	}
	if payload.NewPassword == "" {
		writeError(w, "New password is required", http.StatusBadRequest)
		return
	}

	session, authenticated := sessionFrom(r.Context())
	if authenticated && userID != session.UserID && !session.IsAdmin {
		writeError(w, "Forbidden", http.StatusForbidden)
		return
	}

	var err error
	if authenticated && session.IsAdmin && userID != session.UserID {
		err = s.auth.ResetPassword(userID, payload.NewPassword)
	} else {
		err = s.auth.ChangePassword(userID, payload.OldPassword, payload.NewPassword)
	}
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, "Invalid old password", http.StatusUnauthorized)
			return
		}
		s.writeStoreError(w, r, err, "User not found")
		return
	}
	writeMessage(w, http.StatusOK, "Password updated")
}

// extractToken extracts the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
