package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/treefix50/estate/internal/content"
)

// Insights, gallery items and carousel images each carry one uploaded image
// and are listed newest first.

const insightColumns = `id, title, excerpt, category, author, image, published, created_at, updated_at`

func scanInsight(row rowScanner) (content.Insight, error) {
	var in content.Insight
	var excerpt, category, author, image sql.NullString
	var published int
	var createdAt, updatedAt int64
	if err := row.Scan(&in.ID, &in.Title, &excerpt, &category, &author, &image, &published, &createdAt, &updatedAt); err != nil {
		return content.Insight{}, err
	}
	in.Excerpt = excerpt.String
	in.Category = category.String
	in.Author = author.String
	in.Image = content.ImageRef(image.String)
	in.Published = published == 1
	in.CreatedAt = fromMillis(createdAt)
	in.UpdatedAt = fromMillis(updatedAt)
	return in, nil
}

func (s *Store) ListInsights(ctx context.Context) ([]content.Insight, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+insightColumns+` FROM insights ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list insights: %w", err)
	}
	defer rows.Close()

	out := []content.Insight{}
	for rows.Next() {
		in, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *Store) GetInsight(ctx context.Context, id string) (content.Insight, error) {
	if s == nil || s.db == nil {
		return content.Insight{}, errNoDB
	}
	in, err := scanInsight(s.db.QueryRowContext(ctx, `SELECT `+insightColumns+` FROM insights WHERE id = ?`, id))
	return in, notFound(err)
}

func (s *Store) CreateInsight(ctx context.Context, in *content.Insight) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if err := in.Validate(); err != nil {
		return err
	}
	in.ID, in.CreatedAt = "", time.Time{}
	s.stamp(&in.ID, &in.CreatedAt, &in.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insights (`+insightColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, in.ID, in.Title, nullString(in.Excerpt), nullString(in.Category), nullString(in.Author),
		nullString(string(in.Image)), boolInt(in.Published), millis(in.CreatedAt), millis(in.UpdatedAt))
	if err != nil {
		return fmt.Errorf("storage: create insight: %w", err)
	}
	return nil
}

func (s *Store) UpdateInsight(ctx context.Context, in *content.Insight) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if err := in.Validate(); err != nil {
		return err
	}
	s.stamp(&in.ID, &in.CreatedAt, &in.UpdatedAt)
	result, err := s.db.ExecContext(ctx, `
		UPDATE insights
		SET title = ?, excerpt = ?, category = ?, author = ?, image = ?, published = ?, updated_at = ?
		WHERE id = ?
	`, in.Title, nullString(in.Excerpt), nullString(in.Category), nullString(in.Author),
		nullString(string(in.Image)), boolInt(in.Published), millis(in.UpdatedAt), in.ID)
	if err != nil {
		return fmt.Errorf("storage: update insight: %w", err)
	}
	return requireAffected(result, content.ErrNotFound)
}

func (s *Store) DeleteInsight(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "insights", id)
}

const galleryColumns = `id, title, category, image, created_at, updated_at`

func scanGalleryItem(row rowScanner) (content.GalleryItem, error) {
	var g content.GalleryItem
	var title, category sql.NullString
	var image string
	var createdAt, updatedAt int64
	if err := row.Scan(&g.ID, &title, &category, &image, &createdAt, &updatedAt); err != nil {
		return content.GalleryItem{}, err
	}
	g.Title = title.String
	g.Category = category.String
	g.Image = content.ImageRef(image)
	g.CreatedAt = fromMillis(createdAt)
	g.UpdatedAt = fromMillis(updatedAt)
	return g, nil
}

func (s *Store) ListGallery(ctx context.Context) ([]content.GalleryItem, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+galleryColumns+` FROM gallery ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list gallery: %w", err)
	}
	defer rows.Close()

	out := []content.GalleryItem{}
	for rows.Next() {
		g, err := scanGalleryItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) GetGalleryItem(ctx context.Context, id string) (content.GalleryItem, error) {
	if s == nil || s.db == nil {
		return content.GalleryItem{}, errNoDB
	}
	g, err := scanGalleryItem(s.db.QueryRowContext(ctx, `SELECT `+galleryColumns+` FROM gallery WHERE id = ?`, id))
	return g, notFound(err)
}

func (s *Store) CreateGalleryItem(ctx context.Context, g *content.GalleryItem) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if err := g.Validate(); err != nil {
		return err
	}
	g.ID, g.CreatedAt = "", time.Time{}
	s.stamp(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gallery (`+galleryColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	`, g.ID, nullString(g.Title), nullString(g.Category), string(g.Image), millis(g.CreatedAt), millis(g.UpdatedAt))
	if err != nil {
		return fmt.Errorf("storage: create gallery item: %w", err)
	}
	return nil
}

func (s *Store) UpdateGalleryItem(ctx context.Context, g *content.GalleryItem) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if err := g.Validate(); err != nil {
		return err
	}
	s.stamp(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	result, err := s.db.ExecContext(ctx, `
		UPDATE gallery SET title = ?, category = ?, image = ?, updated_at = ? WHERE id = ?
	`, nullString(g.Title), nullString(g.Category), string(g.Image), millis(g.UpdatedAt), g.ID)
	if err != nil {
		return fmt.Errorf("storage: update gallery item: %w", err)
	}
	return requireAffected(result, content.ErrNotFound)
}

func (s *Store) DeleteGalleryItem(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "gallery", id)
}

const carouselColumns = `id, title, image, device_type, created_at, updated_at`

func scanCarouselImage(row rowScanner) (content.CarouselImage, error) {
	var c content.CarouselImage
	var image, device string
	var createdAt, updatedAt int64
	if err := row.Scan(&c.ID, &c.Title, &image, &device, &createdAt, &updatedAt); err != nil {
		return content.CarouselImage{}, err
	}
	c.Image = content.ImageRef(image)
	c.DeviceType = content.DeviceType(device)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

// ListCarousel returns carousel images newest first. A non-empty device
// restricts the result to that device type.
func (s *Store) ListCarousel(ctx context.Context, device content.DeviceType) ([]content.CarouselImage, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	query := `SELECT ` + carouselColumns + ` FROM carousel_images`
	var args []any
	if device != "" {
		query += ` WHERE device_type = ?`
		args = append(args, string(device))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list carousel: %w", err)
	}
	defer rows.Close()

	out := []content.CarouselImage{}
	for rows.Next() {
		c, err := scanCarouselImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCarouselImage(ctx context.Context, id string) (content.CarouselImage, error) {
	if s == nil || s.db == nil {
		return content.CarouselImage{}, errNoDB
	}
	c, err := scanCarouselImage(s.db.QueryRowContext(ctx, `SELECT `+carouselColumns+` FROM carousel_images WHERE id = ?`, id))
	return c, notFound(err)
}

func (s *Store) CreateCarouselImage(ctx context.Context, c *content.CarouselImage) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if err := c.Validate(); err != nil {
		return err
	}
	c.ID, c.CreatedAt = "", time.Time{}
	s.stamp(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO carousel_images (`+carouselColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.Title, string(c.Image), string(c.DeviceType), millis(c.CreatedAt), millis(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("storage: create carousel image: %w", err)
	}
	return nil
}

func (s *Store) UpdateCarouselImage(ctx context.Context, c *content.CarouselImage) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if err := c.Validate(); err != nil {
		return err
	}
	s.stamp(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	result, err := s.db.ExecContext(ctx, `
		UPDATE carousel_images SET title = ?, image = ?, device_type = ?, updated_at = ? WHERE id = ?
	`, c.Title, string(c.Image), string(c.DeviceType), millis(c.UpdatedAt), c.ID)
	if err != nil {
		return fmt.Errorf("storage: update carousel image: %w", err)
	}
	return requireAffected(result, content.ErrNotFound)
}

func (s *Store) DeleteCarouselImage(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "carousel_images", id)
}
