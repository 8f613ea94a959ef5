package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/treefix50/estate/internal/content"
)

const testimonialColumns = `id, name, designation, message, rating, created_at, updated_at`

func scanTestimonial(row rowScanner) (content.Testimonial, error) {
	var t content.Testimonial
	var designation sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(&t.ID, &t.Name, &designation, &t.Message, &t.Rating, &createdAt, &updatedAt); err != nil {
		return content.Testimonial{}, err
	}
	t.Designation = designation.String
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	return t, nil
}

func (s *Store) ListTestimonials(ctx context.Context) ([]content.Testimonial, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+testimonialColumns+` FROM testimonials ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("storage: list testimonials: %w", err)
	}
	defer rows.Close()

	out := []content.Testimonial{}
	for rows.Next() {
		t, err := scanTestimonial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTestimonial(ctx context.Context, id string) (content.Testimonial, error) {
	if s == nil || s.db == nil {
		return content.Testimonial{}, errNoDB
	}
	t, err := scanTestimonial(s.db.QueryRowContext(ctx, `SELECT `+testimonialColumns+` FROM testimonials WHERE id = ?`, id))
	return t, notFound(err)
}

func (s *Store) CreateTestimonial(ctx context.Context, t *content.Testimonial) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if err := t.Validate(); err != nil {
		return err
	}
	t.ID, t.CreatedAt = "", time.Time{}
	s.stamp(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO testimonials (`+testimonialColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Name, nullString(t.Designation), t.Message, t.Rating, millis(t.CreatedAt), millis(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("storage: create testimonial: %w", err)
	}
	return nil
}

func (s *Store) UpdateTestimonial(ctx context.Context, t *content.Testimonial) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if err := t.Validate(); err != nil {
		return err
	}
	s.stamp(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	result, err := s.db.ExecContext(ctx, `
		UPDATE testimonials SET name = ?, designation = ?, message = ?, rating = ?, updated_at = ? WHERE id = ?
	`, t.Name, nullString(t.Designation), t.Message, t.Rating, millis(t.UpdatedAt), t.ID)
	if err != nil {
		return fmt.Errorf("storage: update testimonial: %w", err)
	}
	return requireAffected(result, content.ErrNotFound)
}

func (s *Store) DeleteTestimonial(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "testimonials", id)
}

const serviceColumns = `id, title, description, icon, created_at, updated_at`

func scanService(row rowScanner) (content.Service, error) {
	var sv content.Service
	var description, icon sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(&sv.ID, &sv.Title, &description, &icon, &createdAt, &updatedAt); err != nil {
		return content.Service{}, err
	}
	sv.Description = description.String
	sv.Icon = icon.String
	sv.CreatedAt = fromMillis(createdAt)
	sv.UpdatedAt = fromMillis(updatedAt)
	return sv, nil
}

// ListServices returns services newest first.
func (s *Store) ListServices(ctx context.Context) ([]content.Service, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list services: %w", err)
	}
	defer rows.Close()

	out := []content.Service{}
	for rows.Next() {
		sv, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

func (s *Store) GetService(ctx context.Context, id string) (content.Service, error) {
	if s == nil || s.db == nil {
		return content.Service{}, errNoDB
	}
	sv, err := scanService(s.db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id))
	return sv, notFound(err)
}

func (s *Store) CreateService(ctx context.Context, sv *content.Service) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if err := sv.Validate(); err != nil {
		return err
	}
	sv.ID, sv.CreatedAt = "", time.Time{}
	s.stamp(&sv.ID, &sv.CreatedAt, &sv.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (`+serviceColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	`, sv.ID, sv.Title, nullString(sv.Description), nullString(sv.Icon), millis(sv.CreatedAt), millis(sv.UpdatedAt))
	if err != nil {
		return fmt.Errorf("storage: create service: %w", err)
	}
	return nil
}

func (s *Store) UpdateService(ctx context.Context, sv *content.Service) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if err := sv.Validate(); err != nil {
		return err
	}
	s.stamp(&sv.ID, &sv.CreatedAt, &sv.UpdatedAt)
	result, err := s.db.ExecContext(ctx, `
		UPDATE services SET title = ?, description = ?, icon = ?, updated_at = ? WHERE id = ?
	`, sv.Title, nullString(sv.Description), nullString(sv.Icon), millis(sv.UpdatedAt), sv.ID)
	if err != nil {
		return fmt.Errorf("storage: update service: %w", err)
	}
	return requireAffected(result, content.ErrNotFound)
}

func (s *Store) DeleteService(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "services", id)
}

const achievementColumns = `id, title, count, description, created_at, updated_at`

func scanAchievement(row rowScanner) (content.Achievement, error) {
	var a content.Achievement
	var count, description sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(&a.ID, &a.Title, &count, &description, &createdAt, &updatedAt); err != nil {
		return content.Achievement{}, err
	}
	a.Count = count.String
	a.Description = description.String
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

func (s *Store) ListAchievements(ctx context.Context) ([]content.Achievement, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+achievementColumns+` FROM achievements ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("storage: list achievements: %w", err)
	}
	defer rows.Close()

	out := []content.Achievement{}
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAchievement(ctx context.Context, id string) (content.Achievement, error) {
	if s == nil || s.db == nil {
		return content.Achievement{}, errNoDB
	}
	a, err := scanAchievement(s.db.QueryRowContext(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE id = ?`, id))
	return a, notFound(err)
}

func (s *Store) CreateAchievement(ctx context.Context, a *content.Achievement) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if err := a.Validate(); err != nil {
		return err
	}
	a.ID, a.CreatedAt = "", time.Time{}
	s.stamp(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO achievements (`+achievementColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.Title, nullString(a.Count), nullString(a.Description), millis(a.CreatedAt), millis(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("storage: create achievement: %w", err)
	}
	return nil
}

func (s *Store) UpdateAchievement(ctx context.Context, a *content.Achievement) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if err := a.Validate(); err != nil {
		return err
	}
	s.stamp(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	result, err := s.db.ExecContext(ctx, `
		UPDATE achievements SET title = ?, count = ?, description = ?, updated_at = ? WHERE id = ?
	`, a.Title, nullString(a.Count), nullString(a.Description), millis(a.UpdatedAt), a.ID)
	if err != nil {
		return fmt.Errorf("storage: update achievement: %w", err)
	}
	return requireAffected(result, content.ErrNotFound)
}

func (s *Store) DeleteAchievement(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "achievements", id)
}
