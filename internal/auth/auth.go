package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrMissingFields      = errors.New("email and password are required")
)

// DefaultAdminEmail is used for the bootstrap account when none is configured.
const DefaultAdminEmail = "admin@localhost"

// User is a back-office account. Users are identified by email.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose password hash
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	LastLogin    time.Time `json:"lastLogin,omitempty"`
}

// Session represents an active user session
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store defines the interface for authentication storage
type Store interface {
	// User management
	CreateUser(user User) error
	GetUser(id string) (*User, error)
	GetUserByEmail(email string) (*User, error)
	UpdateUser(user User) error
	DeleteUser(id string) error
	ListUsers() ([]User, error)
	CountUsers() (int, error)

	// Session management
	CreateSession(session Session) error
	GetSession(token string) (*Session, error)
	DeleteSession(token string) error
	DeleteUserSessions(userID string) error
	CleanExpiredSessions() error
}

// Manager handles authentication operations
type Manager struct {
	store           Store
	sessionDuration time.Duration
	sessionCache    *SessionCache
}

// NewManager creates a new authentication manager
func NewManager(store Store, sessionDuration time.Duration) *Manager {
	if sessionDuration == 0 {
		sessionDuration = 24 * time.Hour // Default: 24 hours
	}
	return &Manager{
		store:           store,
		sessionDuration: sessionDuration,
		sessionCache:    NewSessionCache(1024, 5*time.Minute),
	}
}

// SessionDuration is how long a fresh session stays valid.
func (m *Manager) SessionDuration() time.Duration { return m.sessionDuration }

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GenerateAdminPassword generates a secure random password for the admin user
func GenerateAdminPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("admin-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(bytes)[:22]
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword verifies a password against a hash
func VerifyPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateToken generates a secure random token
func GenerateToken() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		hash := sha256.Sum256([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
		return hex.EncodeToString(hash[:])
	}
	return hex.EncodeToString(bytes)
}

// InitializeAdmin creates an admin account with a generated password when
// the user table is empty. The password is returned only on creation.
func (m *Manager) InitializeAdmin(email string) (string, error) {
	count, err := m.store.CountUsers()
	if err != nil {
		return "", err
	}
	if count > 0 {
		return "", nil
	}

	if email = NormalizeEmail(email); email == "" {
		email = DefaultAdminEmail
	}
	password := GenerateAdminPassword()
	if _, err := m.CreateUser(email, password, true); err != nil {
		return "", err
	}
	return password, nil
}

// SetAdminPassword sets the password of the account with the given email,
// creating it as an admin when it does not exist yet.
func (m *Manager) SetAdminPassword(email, password string) (created bool, err error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return false, ErrMissingFields
	}
	user, err := m.store.GetUserByEmail(email)
	if errors.Is(err, ErrUserNotFound) {
		_, err = m.CreateUser(email, password, true)
		return err == nil, err
	}
	if err != nil {
		return false, err
	}
	return false, m.ResetPassword(user.ID, password)
}

// Login authenticates a user and creates a session
func (m *Manager) Login(email, password string) (*Session, error) {
	user, err := m.store.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLogin = now
	if err := m.store.UpdateUser(*user); err != nil {
		return nil, err
	}

	session := Session{
		Token:     GenerateToken(),
		UserID:    user.ID,
		Email:     user.Email,
		IsAdmin:   user.IsAdmin,
		CreatedAt: now,
		ExpiresAt: now.Add(m.sessionDuration),
	}

	if err := m.store.CreateSession(session); err != nil {
		return nil, err
	}
	m.sessionCache.Set(&session)

	return &session, nil
}

// Logout invalidates a session
func (m *Manager) Logout(token string) error {
	m.sessionCache.Delete(token)
	return m.store.DeleteSession(token)
}

// ValidateSession validates a session token with caching
func (m *Manager) ValidateSession(token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	if session, found := m.sessionCache.Get(token); found {
		return session, nil
	}

	session, err := m.store.GetSession(token)
	if err != nil {
		return nil, err
	}

	if time.Now().After(session.ExpiresAt) {
		_ = m.store.DeleteSession(token)
		m.sessionCache.Delete(token)
		return nil, ErrTokenExpired
	}

	m.sessionCache.Set(session)
	return session, nil
}

// CreateUser creates a new account. Duplicate emails yield ErrUserExists.
func (m *Manager) CreateUser(email, password string, isAdmin bool) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}

	existing, err := m.store.GetUserByEmail(email)
	if err == nil && existing != nil {
		return nil, ErrUserExists
	}
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    time.Now(),
	}

	if err := m.store.CreateUser(user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (m *Manager) GetUser(id string) (*User, error) {
	return m.store.GetUser(id)
}

// UpdateUser replaces a user's email and password. Existing sessions of the
// user are revoked.
func (m *Manager) UpdateUser(id, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}

	user, err := m.store.GetUser(id)
	if err != nil {
		return nil, err
	}

	if email != user.Email {
		other, err := m.store.GetUserByEmail(email)
		if err == nil && other.ID != user.ID {
			return nil, ErrUserExists
		}
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user.Email = email
	user.PasswordHash = hash
	if err := m.store.UpdateUser(*user); err != nil {
		return nil, err
	}

	m.sessionCache.DeleteByUserID(user.ID)
	if err := m.store.DeleteUserSessions(user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword changes a user's password
func (m *Manager) ChangePassword(userID, oldPassword, newPassword string) error {
	user, err := m.store.GetUser(userID)
	if err != nil {
		return err
	}

	if !VerifyPassword(oldPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	return m.ResetPassword(userID, newPassword)
}

// ResetPassword resets a user's password (admin only)
func (m *Manager) ResetPassword(userID, newPassword string) error {
	if newPassword == "" {
		return ErrMissingFields
	}
	user, err := m.store.GetUser(userID)
	if err != nil {
		return err
	}

	newHash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = newHash
	if err := m.store.UpdateUser(*user); err != nil {
		return err
	}

	m.sessionCache.DeleteByUserID(userID)
	return m.store.DeleteUserSessions(userID)
}

// DeleteUser deletes a user (admin only)
func (m *Manager) DeleteUser(userID string) error {
	if _, err := m.store.GetUser(userID); err != nil {
		return err
	}

	m.sessionCache.DeleteByUserID(userID)
	if err := m.store.DeleteUserSessions(userID); err != nil {
		return err
	}

	return m.store.DeleteUser(userID)
}

// ListUsers lists all users (admin only)
func (m *Manager) ListUsers() ([]User, error) {
	return m.store.ListUsers()
}

// CleanupExpiredSessions removes expired sessions
func (m *Manager) CleanupExpiredSessions() error {
	return m.store.CleanExpiredSessions()
}
