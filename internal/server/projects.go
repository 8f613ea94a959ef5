package server

import (
	"encoding/json"
	"maps"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/treefix50/estate/internal/content"
)

const maxProjectImages = 10

// withExistingImages hides references to files that are gone from disk.
func (s *Server) withExistingImages(p content.Project) content.Project {
	p.MainImage = s.media.Check(p.MainImage)
	p.Images = s.media.FilterExisting(p.Images)
	return p
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err, "Project not found")
		return
	}
	for i := range projects {
		projects[i] = s.withExistingImages(projects[i])
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, r, err, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, s.withExistingImages(p))
}

// projectPatch holds the project fields a request sent. Nil fields were not
// sent and keep their stored value.
type projectPatch struct {
	Name               *string             `json:"name"`
	Location           *string             `json:"location"`
	Description        *string             `json:"description"`
	PlotType           *string             `json:"plotType"`
	PricePerSquareFoot *string             `json:"pricePerSquareFoot"`
	Amenities          *[]string           `json:"amenities"`
	Specifications     *map[string]string  `json:"specifications"`
	MainImage          *content.ImageRef   `json:"mainImage"`
	Images             []content.ImageRef  `json:"images"`
	ExistingImages     *[]content.ImageRef `json:"existingImages"`
	DeletedImages      []content.ImageRef  `json:"deletedImages"`
}

// readProjectPatch decodes a JSON, multipart or urlencoded project body.
// The caller must cleanupForm(r).
func readProjectPatch(r *http.Request) (projectPatch, error) {
	var patch projectPatch
	switch mediaType(r) {
	case "application/json":
		if err := decodeJSONBody(r, &patch); err != nil {
			return patch, errMalformedBody
		}
		return patch, nil
	case "multipart/form-data", "application/x-www-form-urlencoded":
		if err := parseForm(r); err != nil {
			return patch, errMalformedBody
		}
		return projectPatchFromForm(r)
	default:
		return patch, errUnsupportedBody
	}
}

// projectPatchFromForm reads the text fields and the JSON-encoded list
// fields of a form. Images in a form arrive as files, not refs.
func projectPatchFromForm(r *http.Request) (projectPatch, error) {
	var patch projectPatch
	for key, dst := range map[string]**string{
		"name":               &patch.Name,
		"location":           &patch.Location,
		"description":        &patch.Description,
		"plotType":           &patch.PlotType,
		"pricePerSquareFoot": &patch.PricePerSquareFoot,
	} {
		if v, ok := formValue(r, key); ok {
			*dst = &v
		}
	}
	if raw, ok := formValue(r, "amenities"); ok && raw != "" {
		var amenities []string
		if err := json.Unmarshal([]byte(raw), &amenities); err != nil {
			return patch, content.Invalid("amenities", "must be a JSON array of strings")
		}
		patch.Amenities = &amenities
	}
	if raw, ok := formValue(r, "specifications"); ok && raw != "" {
		var specs map[string]string
		if err := json.Unmarshal([]byte(raw), &specs); err != nil {
			return patch, content.Invalid("specifications", "must be a JSON object of strings")
		}
		patch.Specifications = &specs
	}
	if _, ok := formValue(r, "existingImages"); ok {
		existing, err := formRefs(r, "existingImages")
		if err != nil {
			return patch, err
		}
		patch.ExistingImages = &existing
	}
	deleted, err := formRefs(r, "deletedImages")
	if err != nil {
		return patch, err
	}
	patch.DeletedImages = deleted
	return patch, nil
}

// apply copies the sent text and list fields onto p.
func (patch projectPatch) apply(p *content.Project) {
	for _, f := range []struct {
		src *string
		dst *string
	}{
		{patch.Name, &p.Name},
		{patch.Location, &p.Location},
		{patch.Description, &p.Description},
		{patch.PlotType, &p.PlotType},
		{patch.PricePerSquareFoot, &p.PricePerSquareFoot},
	} {
		if f.src != nil {
			*f.dst = strings.TrimSpace(*f.src)
		}
	}
	if patch.Amenities != nil {
		p.Amenities = slices.Clone(*patch.Amenities)
	}
	if patch.Specifications != nil {
		p.Specifications = maps.Clone(*patch.Specifications)
	}
}

func formRefs(r *http.Request, key string) ([]content.ImageRef, error) {
	raw, ok := formValue(r, key)
	if !ok || raw == "" {
		return nil, nil
	}
	var refs []content.ImageRef
	if err := json.Unmarshal([]byte(raw), &refs); err != nil {
		return nil, content.Invalid(key, "must be a JSON array of image paths")
	}
	return refs, nil
}

// canonicalRefs rewrites refs to their canonical upload form, dropping refs
// that point outside the upload directory.
func (s *Server) canonicalRefs(refs []content.ImageRef) []content.ImageRef {
	out := make([]content.ImageRef, 0, len(refs))
	for _, ref := range refs {
		if canonical, err := s.media.Canonical(ref); err == nil {
			out = append(out, canonical)
		}
	}
	return out
}

func formFiles(r *http.Request, key string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	return r.MultipartForm.File[key]
}

// saveProjectUploads stores the mainImage and images parts. Files saved
// before a failure are removed again.
func (s *Server) saveProjectUploads(r *http.Request) (main content.ImageRef, images []content.ImageRef, err error) {
	mainFiles := formFiles(r, "mainImage")
	imageFiles := formFiles(r, "images")
	if len(mainFiles) > 1 {
		return "", nil, content.Invalid("mainImage", "only one main image is allowed")
	}
	if len(imageFiles) > maxProjectImages {
		return "", nil, content.Invalid("images", "at most %d images are allowed", maxProjectImages)
	}

	defer func() {
		if err != nil {
			s.media.RemoveAll(append(images, main)...)
			main, images = "", nil
		}
	}()
	if len(mainFiles) == 1 {
		if main, err = s.media.Save(content.KindProject, mainFiles[0]); err != nil {
			return
		}
	}
	for _, fh := range imageFiles {
		ref, saveErr := s.media.Save(content.KindProject, fh)
		if saveErr != nil {
			err = saveErr
			return
		}
		images = append(images, ref)
	}
	return main, images, nil
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	patch, err := readProjectPatch(r)
	defer cleanupForm(r)
	if err != nil {
		s.writeStoreError(w, r, err, "Project not found")
		return
	}

	var p content.Project
	patch.apply(&p)
	if err := p.Validate(); err != nil {
		s.writeStoreError(w, r, err, "Project not found")
		return
	}

	uploaded := !isJSONRequest(r)
	if uploaded {
		main, images, err := s.saveProjectUploads(r)
		if err != nil {
			s.writeStoreError(w, r, err, "Project not found")
			return
		}
		p.MainImage, p.Images = main, images
	} else {
		// JSON bodies cannot carry files; keep only refs that point at real uploads
		if len(patch.Images) > maxProjectImages {
			s.writeStoreError(w, r, content.Invalid("images", "at most %d images are allowed", maxProjectImages), "Project not found")
			return
		}
		if patch.MainImage != nil {
			p.MainImage = s.media.Check(*patch.MainImage)
		}
		p.Images = s.media.FilterExisting(patch.Images)
	}

	if err := s.store.CreateProject(r.Context(), &p); err != nil {
		if uploaded {
			s.media.RemoveAll(p.AllImages()...)
		}
		s.writeStoreError(w, r, err, "Project not found")
		return
	}
	s.logger.Info("project created", zap.String("id", p.ID), zap.Int("images", len(p.AllImages())))
	writeJSON(w, http.StatusCreated, p)
}

// handleUpdateProject applies the sent fields. Images are the kept
// existingImages (or the current set when omitted) followed by new uploads;
// deletedImages that belong to the project are removed from disk. JSON
// bodies carry the same fields as forms but no files.
func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current, err := s.store.GetProject(ctx, mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, r, err, "Project not found")
		return
	}
	patch, err := readProjectPatch(r)
	defer cleanupForm(r)
	if err != nil {
		s.writeStoreError(w, r, err, "Project not found")
		return
	}

	p := current
	p.Amenities = slices.Clone(current.Amenities)
	p.Specifications = maps.Clone(current.Specifications)
	patch.apply(&p)
	if err := p.Validate(); err != nil {
		s.writeStoreError(w, r, err, "Project not found")
		return
	}

	currentImages := s.canonicalRefs(current.Images)
	currentMain, _ := s.media.Canonical(current.MainImage)
	owned := s.canonicalRefs(current.AllImages())
	var removed []content.ImageRef
	for _, ref := range s.canonicalRefs(patch.DeletedImages) {
		if slices.Contains(owned, ref) && !slices.Contains(removed, ref) {
			removed = append(removed, ref)
		}
	}

	kept := currentImages
	if patch.ExistingImages != nil {
		kept = nil
		for _, ref := range s.canonicalRefs(*patch.ExistingImages) {
			if slices.Contains(currentImages, ref) && !slices.Contains(kept, ref) {
				kept = append(kept, ref)
			}
		}
	}
	kept = slices.DeleteFunc(slices.Clone(kept), func(ref content.ImageRef) bool {
		return slices.Contains(removed, ref)
	})
	kept = s.media.FilterExisting(kept)

	main, uploads, err := s.saveProjectUploads(r)
	if err != nil {
		s.writeStoreError(w, r, err, "Project not found")
		return
	}
	p.Images = append(kept, uploads...)
	if main != "" {
		p.MainImage = main
		if currentMain != "" {
			removed = append(removed, currentMain)
		}
	} else if currentMain != "" && slices.Contains(removed, currentMain) {
		p.MainImage = ""
	}

	if err := s.store.UpdateProject(ctx, &p); err != nil {
		s.media.RemoveAll(append(uploads, main)...)
		s.writeStoreError(w, r, err, "Project not found")
		return
	}
	s.media.RemoveAll(removed...)
	s.logger.Info("project updated", zap.String("id", p.ID),
		zap.Int("added", len(uploads)), zap.Int("removed", len(removed)))
	writeJSON(w, http.StatusOK, s.withExistingImages(p))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.store.GetProject(ctx, mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, r, err, "Project not found")
		return
	}
	if err := s.store.DeleteProject(ctx, p.ID); err != nil {
		s.writeStoreError(w, r, err, "Project not found")
		return
	}
	s.media.RemoveAll(p.AllImages()...)
	writeMessage(w, http.StatusOK, "Project deleted successfully")
}
