// Package content holds the records behind the public site collections and
// the rules a record must satisfy before it is stored.
package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
)

// ValidationError names the offending field. It matches ErrInvalid with
// errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Kind selects the upload folder for a collection's images.
type Kind string

const (
	KindProject  Kind = "project"
	KindInsight  Kind = "insight"
	KindCarousel Kind = "carousel"
	KindGallery  Kind = "gallery"
)

// ImageRef is a server-relative path such as /uploads/gallery/x.jpg. The
// empty ref encodes as JSON null.
type ImageRef string

func (r ImageRef) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

func (r *ImageRef) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ImageRef(s)
	return nil
}

type Project struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Location           string            `json:"location"`
	Description        string            `json:"description"`
	PlotType           string            `json:"plotType"`
	PricePerSquareFoot string            `json:"pricePerSquareFoot"`
	Amenities          []string          `json:"amenities"`
	Specifications     map[string]string `json:"specifications"`
	MainImage          ImageRef          `json:"mainImage"`
	Images             []ImageRef        `json:"images"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

func (p *Project) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Invalid("name", "is required")
	}
	if p.Amenities == nil {
		p.Amenities = []string{}
	}
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
	if p.Images == nil {
		p.Images = []ImageRef{}
	}
	return nil
}

// AllImages lists every file the project references.
func (p Project) AllImages() []ImageRef {
	out := make([]ImageRef, 0, len(p.Images)+1)
	if p.MainImage != "" {
		out = append(out, p.MainImage)
	}
	return append(out, p.Images...)
}

type Insight struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt"`
	Category  string    `json:"category"`
	Author    string    `json:"author"`
	Image     ImageRef  `json:"image"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (i *Insight) Validate() error {
	i.Title = strings.TrimSpace(i.Title)
	if i.Title == "" {
		return Invalid("title", "is required")
	}
	return nil
}

type Testimonial struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Designation string    `json:"designation"`
	Message     string    `json:"message"`
	Rating      int       `json:"rating"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (t *Testimonial) Validate() error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return Invalid("name", "is required")
	}
	if strings.TrimSpace(t.Message) == "" {
		return Invalid("message", "is required")
	}
	if t.Rating < 0 || t.Rating > 5 {
		return Invalid("rating", "must be between 0 and 5")
	}
	return nil
}

type Service struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (s *Service) Validate() error {
	s.Title = strings.TrimSpace(s.Title)
	if s.Title == "" {
		return Invalid("title", "is required")
	}
	return nil
}

type GalleryItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Image     ImageRef  `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (g *GalleryItem) Validate() error {
	if g.Image == "" {
		return Invalid("image", "Image is required")
	}
	return nil
}

// DeviceType tags a carousel image for one viewport class.
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceDesktop DeviceType = "desktop"
)

func ParseDeviceType(s string) (DeviceType, error) {
	switch DeviceType(strings.ToLower(strings.TrimSpace(s))) {
	case DeviceMobile:
		return DeviceMobile, nil
	case DeviceDesktop:
		return DeviceDesktop, nil
	}
	return "", Invalid("deviceType", "Valid deviceType is required: 'mobile' or 'desktop'")
}

type CarouselImage struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Image      ImageRef   `json:"image"`
	DeviceType DeviceType `json:"deviceType"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (c *CarouselImage) Validate() error {
	if c.Image == "" {
		return Invalid("image", "Image is required")
	}
	device, err := ParseDeviceType(string(c.DeviceType))
	if err != nil {
		return err
	}
	c.DeviceType = device
	c.Title = strings.TrimSpace(c.Title)
	return nil
}

type Achievement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Count       string    `json:"count"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (a *Achievement) Validate() error {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		return Invalid("title", "is required")
	}
	return nil
}

// Inquiry is a contact form submission.
type Inquiry struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Type  string `json:"type"`
}

func (q *Inquiry) Validate() error {
	q.Name = strings.TrimSpace(q.Name)
	q.Email = strings.TrimSpace(q.Email)
	q.Phone = strings.TrimSpace(q.Phone)
	q.Type = strings.TrimSpace(q.Type)
	switch {
	case q.Name == "":
		return Invalid("name", "is required")
	case q.Email == "" || !strings.Contains(q.Email, "@"):
		return Invalid("email", "must be a valid address")
	case q.Type == "":
		return Invalid("type", "is required")
	}
	return nil
}
