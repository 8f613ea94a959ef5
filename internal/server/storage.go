package server

import (
	"context"

	"github.com/treefix50/estate/internal/content"
)

// ContentStore defines the storage operations behind the public collections.
type ContentStore interface {
	ReadOnly() bool
	Ping(ctx context.Context) error

	ListProjects(ctx context.Context) ([]content.Project, error)
	GetProject(ctx context.Context, id string) (content.Project, error)
	CreateProject(ctx context.Context, p *content.Project) error
	UpdateProject(ctx context.Context, p *content.Project) error
	DeleteProject(ctx context.Context, id string) error

	ListInsights(ctx context.Context) ([]content.Insight, error)
	GetInsight(ctx context.Context, id string) (content.Insight, error)
	CreateInsight(ctx context.Context, in *content.Insight) error
	UpdateInsight(ctx context.Context, in *content.Insight) error
	DeleteInsight(ctx context.Context, id string) error

	ListGallery(ctx context.Context) ([]content.GalleryItem, error)
	GetGalleryItem(ctx context.Context, id string) (content.GalleryItem, error)
	CreateGalleryItem(ctx context.Context, g *content.GalleryItem) error
	UpdateGalleryItem(ctx context.Context, g *content.GalleryItem) error
	DeleteGalleryItem(ctx context.Context, id string) error

	ListCarousel(ctx context.Context, device content.DeviceType) ([]content.CarouselImage, error)
	GetCarouselImage(ctx context.Context, id string) (content.CarouselImage, error)
	CreateCarouselImage(ctx context.Context, c *content.CarouselImage) error
	UpdateCarouselImage(ctx context.Context, c *content.CarouselImage) error
	DeleteCarouselImage(ctx context.Context, id string) error

	ListTestimonials(ctx context.Context) ([]content.Testimonial, error)
	GetTestimonial(ctx context.Context, id string) (content.Testimonial, error)
	CreateTestimonial(ctx context.Context, t *content.Testimonial) error
	UpdateTestimonial(ctx context.Context, t *content.Testimonial) error
	DeleteTestimonial(ctx context.Context, id string) error

	ListServices(ctx context.Context) ([]content.Service, error)
	GetService(ctx context.Context, id string) (content.Service, error)
	CreateService(ctx context.Context, sv *content.Service) error
	UpdateService(ctx context.Context, sv *content.Service) error
	DeleteService(ctx context.Context, id string) error

	ListAchievements(ctx context.Context) ([]content.Achievement, error)
	GetAchievement(ctx context.Context, id string) (content.Achievement, error)
	CreateAchievement(ctx context.Context, a *content.Achievement) error
	UpdateAchievement(ctx context.Context, a *content.Achievement) error
	DeleteAchievement(ctx context.Context, id string) error
}
