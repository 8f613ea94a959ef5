package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/treefix50/estate/internal/content"
)

func newID() string { return uuid.NewString() }

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: value, Valid: true}
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

// stamp assigns an id to new records and refreshes timestamps.
func (s *Store) stamp(id *string, created, updated *time.Time) {
	now := s.timestamp()
	if *id == "" {
		*id = newID()
	}
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return content.ErrNotFound
	}
	return err
}

func (s *Store) deleteByID(ctx context.Context, table, id string) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete from %s: %w", table, err)
	}
	return requireAffected(result, content.ErrNotFound)
}

const projectColumns = `id, name, location, description, plot_type, price_per_square_foot,
	amenities, specifications, main_image, images, created_at, updated_at`

func scanProject(row rowScanner) (content.Project, error) {
	var p content.Project
	var location, description, plotType, price, mainImage sql.NullString
	var amenities, specifications, images string
	var createdAt, updatedAt int64
	err := row.Scan(&p.ID, &p.Name, &location, &description, &plotType, &price,
		&amenities, &specifications, &mainImage, &images, &createdAt, &updatedAt)
	if err != nil {
		return content.Project{}, err
	}
	p.Location = location.String
	p.Description = description.String
	p.PlotType = plotType.String
	p.PricePerSquareFoot = price.String
	p.MainImage = content.ImageRef(mainImage.String)
	if err := decodeJSON(amenities, &p.Amenities); err != nil {
		return content.Project{}, fmt.Errorf("storage: project %s amenities: %w", p.ID, err)
	}
	if err := decodeJSON(specifications, &p.Specifications); err != nil {
		return content.Project{}, fmt.Errorf("storage: project %s specifications: %w", p.ID, err)
	}
	if err := decodeJSON(images, &p.Images); err != nil {
		return content.Project{}, fmt.Errorf("storage: project %s images: %w", p.ID, err)
	}
	if p.Amenities == nil {
		p.Amenities = []string{}
	}
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
	if p.Images == nil {
		p.Images = []content.ImageRef{}
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]content.Project, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("storage: list projects: %w", err)
	}
	defer rows.Close()

	projects := []content.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, id string) (content.Project, error) {
	if s == nil || s.db == nil {
		return content.Project{}, errNoDB
	}
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	return p, notFound(err)
}

func (s *Store) CreateProject(ctx context.Context, p *content.Project) error {
	return s.saveProject(ctx, p, true)
}

func (s *Store) UpdateProject(ctx context.Context, p *content.Project) error {
	return s.saveProject(ctx, p, false)
}

func (s *Store) saveProject(ctx context.Context, p *content.Project, insert bool) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if err := p.Validate(); err != nil {
		return err
	}
	amenities, err := encodeJSON(p.Amenities)
	if err != nil {
		return err
	}
	specifications, err := encodeJSON(p.Specifications)
	if err != nil {
		return err
	}
	if p.Specifications == nil {
		specifications = "{}"
	}
	images, err := encodeJSON(p.Images)
	if err != nil {
		return err
	}

	if insert {
		p.ID = ""
		p.CreatedAt = time.Time{}
	}
	s.stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if insert {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO projects (`+projectColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.Name, nullString(p.Location), nullString(p.Description), nullString(p.PlotType),
			nullString(p.PricePerSquareFoot), amenities, specifications, nullString(string(p.MainImage)),
			images, millis(p.CreatedAt), millis(p.UpdatedAt))
		if err != nil {
			return fmt.Errorf("storage: create project: %w", err)
		}
		return nil
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET name = ?, location = ?, description = ?, plot_type = ?, price_per_square_foot = ?,
			amenities = ?, specifications = ?, main_image = ?, images = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, nullString(p.Location), nullString(p.Description), nullString(p.PlotType),
		nullString(p.PricePerSquareFoot), amenities, specifications, nullString(string(p.MainImage)),
		images, millis(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("storage: update project: %w", err)
	}
	return requireAffected(result, content.ErrNotFound)
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "projects", id)
}
