package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/treefix50/estate/internal/auth"
)

const userColumns = `id, email, password_hash, is_admin, created_at, last_login`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var user auth.User
	var createdAt, lastLogin sql.NullInt64
	var isAdmin int

	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &isAdmin, &createdAt, &lastLogin); err != nil {
		return nil, err
	}

	user.IsAdmin = isAdmin == 1
	if createdAt.Valid {
		user.CreatedAt = time.Unix(createdAt.Int64, 0)
	}
	if lastLogin.Valid {
		user.LastLogin = time.Unix(lastLogin.Int64, 0)
	}
	return &user, nil
}

// CreateUser creates a new user
func (s *Store) CreateUser(user auth.User) error {
	if s == nil || s.db == nil {
		return errNoDB
	}

	_, err := s.db.Exec(`
		INSERT INTO auth_users (id, email, password_hash, is_admin, created_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.PasswordHash, boolInt(user.IsAdmin), user.CreatedAt.Unix(), nullInt64FromTime(user.LastLogin))
	if isUniqueViolation(err) {
		return auth.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("storage: create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(id string) (*auth.User, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}

	user, err := scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM auth_users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	return user, err
}

// GetUserByEmail retrieves a user by email, ignoring case
func (s *Store) GetUserByEmail(email string) (*auth.User, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}

	user, err := scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM auth_users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	return user, err
}

// UpdateUser updates a user
func (s *Store) UpdateUser(user auth.User) error {
	if s == nil || s.db == nil {
		return errNoDB
	}

	result, err := s.db.Exec(`
		UPDATE auth_users
		SET email = ?, password_hash = ?, is_admin = ?, last_login = ?
		WHERE id = ?
	`, user.Email, user.PasswordHash, boolInt(user.IsAdmin), nullInt64FromTime(user.LastLogin), user.ID)
	if isUniqueViolation(err) {
		return auth.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("storage: update user: %w", err)
	}
	return requireAffected(result, auth.ErrUserNotFound)
}

// DeleteUser deletes a user
func (s *Store) DeleteUser(id string) error {
	if s == nil || s.db == nil {
		return errNoDB
	}

	result, err := s.db.Exec(`DELETE FROM auth_users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete user: %w", err)
	}
	return requireAffected(result, auth.ErrUserNotFound)
}

// ListUsers lists all users
func (s *Store) ListUsers() ([]auth.User, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}

	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM auth_users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []auth.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}

	return users, rows.Err()
}

// CountUsers returns the number of users
func (s *Store) CountUsers() (int, error) {
	if s == nil || s.db == nil {
		return 0, errNoDB
	}

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM auth_users`).Scan(&count)
	return count, err
}

// CreateSession creates a new session
func (s *Store) CreateSession(session auth.Session) error {
	if s == nil || s.db == nil {
		return errNoDB
	}

	_, err := s.db.Exec(`
		INSERT INTO auth_sessions (token, user_id, email, is_admin, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, session.Token, session.UserID, session.Email, boolInt(session.IsAdmin), session.CreatedAt.Unix(), session.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("storage: create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by token
func (s *Store) GetSession(token string) (*auth.Session, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}

	var session auth.Session
	var createdAt, expiresAt int64
	var isAdmin int

	err := s.db.QueryRow(`
		SELECT token, user_id, email, is_admin, created_at, expires_at
		FROM auth_sessions
		WHERE token = ?
	`, token).Scan(&session.Token, &session.UserID, &session.Email, &isAdmin, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	session.IsAdmin = isAdmin == 1
	session.CreatedAt = time.Unix(createdAt, 0)
	session.ExpiresAt = time.Unix(expiresAt, 0)

	return &session, nil
}

// DeleteSession deletes a session
func (s *Store) DeleteSession(token string) error {
	if s == nil || s.db == nil {
		return errNoDB
	}

	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE token = ?`, token)
	return err
}

// DeleteUserSessions deletes all sessions for a user
func (s *Store) DeleteUserSessions(userID string) error {
	if s == nil || s.db == nil {
		return errNoDB
	}

	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE user_id = ?`, userID)
	return err
}

// CleanExpiredSessions removes expired sessions
func (s *Store) CleanExpiredSessions() error {
	if s == nil || s.db == nil {
		return errNoDB
	}

	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE expires_at < ?`, s.timestamp().Unix())
	return err
}

func nullInt64FromTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
