package content

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageRefNull(t *testing.T) {
	data, err := json.Marshal(GalleryItem{ID: "g1"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"image":null`)

	var p Project
	require.NoError(t, json.Unmarshal([]byte(`{"mainImage":null,"images":["/uploads/project/a.jpg"]}`), &p))
	assert.Equal(t, ImageRef(""), p.MainImage)
	assert.Equal(t, []ImageRef{"/uploads/project/a.jpg"}, p.Images)
}

func TestValidationErrorMatchesErrInvalid(t *testing.T) {
	err := (&Project{Name: "   "}).Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
	assert.Equal(t, "name: is required", err.Error())
}

func TestProjectValidateFillsEmptyLists(t *testing.T) {
	p := Project{Name: " Palm Grove "}
	require.NoError(t, p.Validate())
	assert.Equal(t, "Palm Grove", p.Name)
	assert.NotNil(t, p.Amenities)
	assert.NotNil(t, p.Specifications)
	assert.NotNil(t, p.Images)
	assert.Empty(t, p.AllImages())

	p.MainImage = "/uploads/project/main.jpg"
	p.Images = []ImageRef{"/uploads/project/1.jpg"}
	assert.Equal(t, []ImageRef{"/uploads/project/main.jpg", "/uploads/project/1.jpg"}, p.AllImages())
}

func TestCarouselImageValidate(t *testing.T) {
	c := CarouselImage{Image: "/uploads/carousel/a.jpg", DeviceType: " Desktop "}
	require.NoError(t, c.Validate())
	assert.Equal(t, DeviceDesktop, c.DeviceType)

	c.DeviceType = "tablet"
	assert.ErrorIs(t, c.Validate(), ErrInvalid)

	assert.ErrorIs(t, (&CarouselImage{DeviceType: DeviceMobile}).Validate(), ErrInvalid)
}

func TestInquiryValidate(t *testing.T) {
	tests := []struct {
		name  string
		in    Inquiry
		field string
	}{
		{"ok", Inquiry{Name: "Asha", Email: "a@example.com", Type: "site-visit"}, ""},
		{"missing name", Inquiry{Email: "a@example.com", Type: "brochure"}, "name"},
		{"bad email", Inquiry{Name: "Asha", Email: "nope", Type: "brochure"}, "email"},
		{"missing type", Inquiry{Name: "Asha", Email: "a@example.com"}, "type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
