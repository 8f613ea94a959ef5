package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/treefix50/estate/internal/content"
)

// saveUpload stores the single file sent under key, if any.
func (s *Server) saveUpload(r *http.Request, kind content.Kind, key string) (content.ImageRef, error) {
	files := formFiles(r, key)
	switch len(files) {
	case 0:
		return "", nil
	case 1:
		return s.media.Save(kind, files[0])
	default:
		return "", content.Invalid(key, "only one file is allowed")
	}
}

// setIfSent overwrites dst with a non-empty form value.
func setIfSent(r *http.Request, key string, dst *string) {
	if v, ok := formValue(r, key); ok && v != "" {
		*dst = v
	}
}

func (s *Server) beginForm(w http.ResponseWriter, r *http.Request) bool {
	if err := parseForm(r); err != nil {
		writeError(w, errBadRequest, http.StatusBadRequest)
		return false
	}
	return true
}

// Insights

func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := s.store.ListInsights(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err, "Insight not found")
		return
	}
	for i := range insights {
		insights[i].Image = s.media.Check(insights[i].Image)
	}
	writeJSON(w, http.StatusOK, insights)
}

func (s *Server) handleGetInsight(w http.ResponseWriter, r *http.Request) {
	in, err := s.store.GetInsight(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, r, err, "Insight not found")
		return
	}
	in.Image = s.media.Check(in.Image)
	writeJSON(w, http.StatusOK, in)
}

func applyInsightForm(r *http.Request, in *content.Insight) error {
	setIfSent(r, "title", &in.Title)
	setIfSent(r, "excerpt", &in.Excerpt)
	setIfSent(r, "category", &in.Category)
	setIfSent(r, "author", &in.Author)
	if raw, ok := formValue(r, "published"); ok && raw != "" {
		published, err := strconv.ParseBool(raw)
		if err != nil {
			return content.Invalid("published", "must be true or false")
		}
		in.Published = published
	}
	return nil
}

func (s *Server) handleCreateInsight(w http.ResponseWriter, r *http.Request) {
	if !s.beginForm(w, r) {
		return
	}
	defer cleanupForm(r)

	var in content.Insight
	if err := applyInsightForm(r, &in); err != nil {
		s.writeStoreError(w, r, err, "Insight not found")
		return
	}
	if err := in.Validate(); err != nil {
		s.writeStoreError(w, r, err, "Insight not found")
		return
	}
	image, err := s.saveUpload(r, content.KindInsight, "image")
	if err != nil {
		s.writeStoreError(w, r, err, "Insight not found")
		return
	}
	in.Image = image

	if err := s.store.CreateInsight(r.Context(), &in); err != nil {
		s.media.RemoveAll(image)
		s.writeStoreError(w, r, err, "Insight not found")
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) handleUpdateInsight(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, err := s.store.GetInsight(ctx, mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, r, err, "Insight not found")
		return
	}
	if !s.beginForm(w, r) {
		return
	}
	defer cleanupForm(r)

	old := in.Image
	if err := applyInsightForm(r, &in); err != nil {
		s.writeStoreError(w, r, err, "Insight not found")
		return
	}
	image, err := s.saveUpload(r, content.KindInsight, "image")
	if err != nil {
		s.writeStoreError(w, r, err, "Insight not found")
		return
	}
	if image != "" {
		in.Image = image
	}

	if err := s.store.UpdateInsight(ctx, &in); err != nil {
		s.media.RemoveAll(image)
		s.writeStoreError(w, r, err, "Insight not found")
		return
	}
	if image != "" && old != "" {
		s.media.RemoveAll(old)
	}
	in.Image = s.media.Check(in.Image)
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleDeleteInsight(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, err := s.store.GetInsight(ctx, mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, r, err, "Insight not found")
		return
	}
	if err := s.store.DeleteInsight(ctx, in.ID); err != nil {
		s.writeStoreError(w, r, err, "Insight not found")
		return
	}
	s.media.RemoveAll(in.Image)
	writeMessage(w, http.StatusOK, "Insight deleted successfully")
}

// Gallery

func (s *Server) handleListGallery(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListGallery(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err, "Gallery item not found")
		return
	}
	for i := range items {
		items[i].Image = s.media.Check(items[i].Image)
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetGalleryItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.GetGalleryItem(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, r, err, "Gallery item not found")
		return
	}
	item.Image = s.media.Check(item.Image)
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleCreateGalleryItem(w http.ResponseWriter, r *http.Request) {
	if !s.beginForm(w, r) {
		return
	}
	defer cleanupForm(r)

	if len(formFiles(r, "image")) == 0 {
		writeError(w, "Image is required", http.StatusBadRequest)
		return
	}
	var item content.GalleryItem
	setIfSent(r, "title", &item.Title)
	setIfSent(r, "category", &item.Category)

	image, err := s.saveUpload(r, content.KindGallery, "image")
	if err != nil {
		s.writeStoreError(w, r, err, "Gallery item not found")
		return
	}
	item.Image = image
	if err := s.store.CreateGalleryItem(r.Context(), &item); err != nil {
		s.media.RemoveAll(image)
		s.writeStoreError(w, r, err, "Gallery item not found")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleUpdateGalleryItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := s.store.GetGalleryItem(ctx, mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, r, err, "Gallery item not found")
		return
	}
	if !s.beginForm(w, r) {
		return
	}
	defer cleanupForm(r)

	old := item.Image
	setIfSent(r, "title", &item.Title)
	setIfSent(r, "category", &item.Category)
	image, err := s.saveUpload(r, content.KindGallery, "image")
	if err != nil {
		s.writeStoreError(w, r, err, "Gallery item not found")
		return
	}
	if image != "" {
		item.Image = image
	}

	if err := s.store.UpdateGalleryItem(ctx, &item); err != nil {
		s.media.RemoveAll(image)
		s.writeStoreError(w, r, err, "Gallery item not found")
		return
	}
	if image != "" {
		s.media.RemoveAll(old)
	}
	item.Image = s.media.Check(item.Image)
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteGalleryItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := s.store.GetGalleryItem(ctx, mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, r, err, "Gallery item not found")
		return
	}
	if err := s.store.DeleteGalleryItem(ctx, item.ID); err != nil {
		s.writeStoreError(w, r, err, "Gallery item not found")
		return
	}
	s.media.RemoveAll(item.Image)
	writeMessage(w, http.StatusOK, "Deleted successfully")
}

// Carousel

// handleListCarousel returns every slide, or only one device type's slides
// when ?deviceType= is given. Image refs are returned as stored; clients
// render a placeholder for files that fail to load.
func (s *Server) handleListCarousel(w http.ResponseWriter, r *http.Request) {
	var device content.DeviceType
	if raw := r.URL.Query().Get("deviceType"); raw != "" {
		parsed, err := content.ParseDeviceType(raw)
		if err != nil {
			s.writeStoreError(w, r, err, "")
			return
		}
		device = parsed
	}
	images, err := s.store.ListCarousel(r.Context(), device)
	if err != nil {
		s.writeStoreError(w, r, err, "Image not found")
		return
	}
	writeJSON(w, http.StatusOK, images)
}

func (s *Server) handleGetCarouselImage(w http.ResponseWriter, r *http.Request) {
	img, err := s.store.GetCarouselImage(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, r, err, "Image not found")
		return
	}
	writeJSON(w, http.StatusOK, img)
}

func (s *Server) handleCreateCarouselImage(w http.ResponseWriter, r *http.Request) {
	if !s.beginForm(w, r) {
		return
	}
	defer cleanupForm(r)

	if len(formFiles(r, "image")) == 0 {
		writeError(w, "Image is required", http.StatusBadRequest)
		return
	}
	rawDevice, _ := formValue(r, "deviceType")
	device, err := content.ParseDeviceType(rawDevice)
	if err != nil {
		s.writeStoreError(w, r, err, "")
		return
	}
	img := content.CarouselImage{DeviceType: device}
	setIfSent(r, "title", &img.Title)

	image, err := s.saveUpload(r, content.KindCarousel, "image")
	if err != nil {
		s.writeStoreError(w, r, err, "Image not found")
		return
	}
	img.Image = image
	if err := s.store.CreateCarouselImage(r.Context(), &img); err != nil {
		s.media.RemoveAll(image)
		s.writeStoreError(w, r, err, "Image not found")
		return
	}
	s.logger.Info("carousel image added", zap.String("id", img.ID), zap.String("device", string(img.DeviceType)))
	writeJSON(w, http.StatusCreated, img)
}

func (s *Server) handleUpdateCarouselImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	img, err := s.store.GetCarouselImage(ctx, mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, r, err, "Image not found")
		return
	}
	if !s.beginForm(w, r) {
		return
	}
	defer cleanupForm(r)

	old := img.Image
	if v, ok := formValue(r, "title"); ok {
		img.Title = v
	}
	if raw, ok := formValue(r, "deviceType"); ok && raw != "" {
		device, err := content.ParseDeviceType(raw)
		if err != nil {
			s.writeStoreError(w, r, err, "")
			return
		}
		img.DeviceType = device
	}
	image, err := s.saveUpload(r, content.KindCarousel, "image")
	if err != nil {
		s.writeStoreError(w, r, err, "Image not found")
		return
	}
	if image != "" {
		img.Image = image
	}

	if err := s.store.UpdateCarouselImage(ctx, &img); err != nil {
		s.media.RemoveAll(image)
		s.writeStoreError(w, r, err, "Image not found")
		return
	}
	if image != "" {
		s.media.RemoveAll(old)
	}
	writeJSON(w, http.StatusOK, img)
}

func (s *Server) handleDeleteCarouselImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	img, err := s.store.GetCarouselImage(ctx, mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, r, err, "Image not found")
		return
	}
	if err := s.store.DeleteCarouselImage(ctx, img.ID); err != nil {
		s.writeStoreError(w, r, err, "Image not found")
		return
	}
	s.media.RemoveAll(img.Image)
	writeMessage(w, http.StatusOK, "Deleted successfully")
}
