package storage

import "fmt"

const schemaAuthUsers = `
CREATE TABLE IF NOT EXISTS auth_users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL,
	is_admin INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	last_login INTEGER
);`

const schemaAuthSessions = `
CREATE TABLE IF NOT EXISTS auth_sessions (
	token TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	email TEXT NOT NULL,
	is_admin INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	FOREIGN KEY (user_id) REFERENCES auth_users(id) ON DELETE CASCADE
);`

const schemaAuthIndexes = `
CREATE INDEX IF NOT EXISTS idx_auth_sessions_user_id ON auth_sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_auth_sessions_expires_at ON auth_sessions(expires_at);`

const schemaProjects = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	location TEXT,
	description TEXT,
	plot_type TEXT,
	price_per_square_foot TEXT,
	amenities TEXT NOT NULL DEFAULT '[]',
	specifications TEXT NOT NULL DEFAULT '{}',
	main_image TEXT,
	images TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

const schemaInsights = `
CREATE TABLE IF NOT EXISTS insights (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	excerpt TEXT,
	category TEXT,
	author TEXT,
	image TEXT,
	published INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

const schemaTestimonials = `
CREATE TABLE IF NOT EXISTS testimonials (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	designation TEXT,
	message TEXT NOT NULL,
	rating INTEGER NOT NULL DEFAULT 0 CHECK (rating >= 0 AND rating <= 5),
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

const schemaServices = `
CREATE TABLE IF NOT EXISTS services (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	icon TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

const schemaGallery = `
CREATE TABLE IF NOT EXISTS gallery (
	id TEXT PRIMARY KEY,
	title TEXT,
	category TEXT,
	image TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

const schemaCarousel = `
CREATE TABLE IF NOT EXISTS carousel_images (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	image TEXT NOT NULL,
	device_type TEXT NOT NULL CHECK (device_type IN ('mobile', 'desktop')),
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

const schemaContentIndexes = `
CREATE INDEX IF NOT EXISTS idx_insights_created_at ON insights(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_services_created_at ON services(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_gallery_created_at ON gallery(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_carousel_images_created_at ON carousel_images(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_carousel_images_device_type ON carousel_images(device_type);`

const schemaAchievements = `
CREATE TABLE IF NOT EXISTS achievements (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	count TEXT,
	description TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

const schemaMigrations = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY
);`

type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			schemaAuthUsers,
			schemaAuthSessions,
			schemaAuthIndexes,
		},
	},
	{
		version: 2,
		statements: []string{
			schemaProjects,
			schemaInsights,
			schemaTestimonials,
			schemaServices,
			schemaGallery,
			schemaCarousel,
			schemaContentIndexes,
		},
	},
	{
		version: 3,
		statements: []string{
			schemaAchievements,
		},
	},
}

func (s *Store) EnsureSchema() error {
	return s.MigrateSchema()
}

func (s *Store) MigrateSchema() error {
	if s == nil || s.db == nil {
		return errNoDB
	}

	if _, err := s.db.Exec(schemaMigrations); err != nil {
		return fmt.Errorf("storage: create schema_migrations table: %w", err)
	}

	current, err := s.currentSchemaVersion()
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.version <= current {
			continue
		}
		if err := s.applyMigration(migration); err != nil {
			return err
		}
		current = migration.version
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion() (int, error) {
	return s.currentSchemaVersion()
}

func (s *Store) currentSchemaVersion() (int, error) {
	if s == nil || s.db == nil {
		return 0, errNoDB
	}

	var version int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("storage: read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) applyMigration(migration migration) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: start migration %d: %w", migration.version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, statement := range migration.statements {
		if _, err = tx.Exec(statement); err != nil {
			return fmt.Errorf("storage: migration %d failed: %w", migration.version, err)
		}
	}

	if _, err = tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, migration.version); err != nil {
		return fmt.Errorf("storage: record migration %d: %w", migration.version, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit migration %d: %w", migration.version, err)
	}
	return nil
}
