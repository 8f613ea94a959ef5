package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var errNoDB = errors.New("storage: missing database connection")

type Store struct {
	db       *sql.DB
	readOnly bool
	now      func() time.Time
}

type Options struct {
	BusyTimeout time.Duration
	Synchronous string
	CacheSize   int
	ReadOnly    bool
}

func sqliteDSN(path string, readOnly bool) (string, error) {
	if !readOnly {
		return path, nil
	}
	if path == ":memory:" {
		return "", fmt.Errorf("storage: read-only mode requires a file-backed database")
	}
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("mode", "ro")
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// Open opens (and, unless read-only, migrates) the sqlite database at path.
func Open(path string, options Options) (*Store, error) {
	dsn, err := sqliteDSN(path, options.ReadOnly)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{"PRAGMA foreign_keys=ON"}
	if !options.ReadOnly {
		synchronous := options.Synchronous
		if synchronous == "" {
			synchronous = "NORMAL"
		}
		pragmas = append(pragmas,
			"PRAGMA journal_mode=WAL",
			fmt.Sprintf("PRAGMA synchronous=%s", synchronous),
		)
	}
	pragmas = append(pragmas,
		fmt.Sprintf("PRAGMA busy_timeout=%d", int(options.BusyTimeout/time.Millisecond)),
		"PRAGMA temp_store=MEMORY",
	)
	if options.CacheSize != 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA cache_size=%d", options.CacheSize))
	}
	if !options.ReadOnly {
		pragmas = append(pragmas, "PRAGMA journal_size_limit=67108864")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, readOnly: options.ReadOnly, now: time.Now}
	if !options.ReadOnly {
		if err := store.MigrateSchema(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ReadOnly() bool {
	if s == nil {
		return false
	}
	return s.readOnly
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	return s.db.PingContext(ctx)
}

func (s *Store) IntegrityCheck() ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.Query("PRAGMA integrity_check")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []string
	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) Vacuum(target string) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if target == "" {
		_, err := s.db.Exec("VACUUM")
		return err
	}
	_, err := s.db.Exec("VACUUM INTO ?", target)
	return err
}

func (s *Store) Analyze() error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	_, err := s.db.Exec("ANALYZE")
	return err
}

func (s *Store) timestamp() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch code := se.Code(); {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case code&0xff == sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}
