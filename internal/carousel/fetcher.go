package carousel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxSlideListBytes = 4 << 20

// Fetcher loads slide descriptors from the API's carousel collection.
type Fetcher struct {
	base   string
	client *http.Client
}

// NewFetcher returns a fetcher for the API rooted at baseURL.
func NewFetcher(baseURL string, client *http.Client) (*Fetcher, error) {
	baseURL = strings.TrimSpace(baseURL)
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("carousel: parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("carousel: base url %q must be http or https", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{base: strings.TrimRight(baseURL, "/"), client: client}, nil
}

type wireSlide struct {
	ID         json.RawMessage `json:"id"`
	Title      string          `json:"title"`
	Image      *string         `json:"image"`
	DeviceType string          `json:"deviceType"`
}

// Fetch retrieves and normalizes the carousel collection, preserving the
// order the API returned.
func (f *Fetcher) Fetch(ctx context.Context) ([]Slide, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.base+"/carousel", nil)
	if err != nil {
		return nil, fmt.Errorf("carousel: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("carousel: fetch slides: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))
		return nil, fmt.Errorf("carousel: fetch slides: unexpected status %d", resp.StatusCode)
	}

	var wire []wireSlide
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSlideListBytes)).Decode(&wire); err != nil {
		return nil, fmt.Errorf("carousel: decode slides: %w", err)
	}

	slides := make([]Slide, 0, len(wire))
	for i, w := range wire {
		slides = append(slides, f.normalize(i, w))
	}
	return slides, nil
}

func (f *Fetcher) normalize(i int, w wireSlide) Slide {
	id := rawID(w.ID)
	if id == "" {
		id = "slide-" + strconv.Itoa(i)
	}
	image := ""
	if w.Image != nil {
		image = f.ResolveImage(*w.Image)
	}
	device, ok := ParseDeviceClass(w.DeviceType)
	if !ok {
		device = DeviceClass(strings.ToLower(strings.TrimSpace(w.DeviceType)))
	}
	return Slide{
		ID:       id,
		ImageRef: image,
		Title:    strings.TrimSpace(w.Title),
		Device:   device,
	}
}

// ResolveImage turns an API image reference into a URL. Absolute references
// are returned unchanged; paths are joined onto the API base.
func (f *Fetcher) ResolveImage(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "//") {
		return ref
	}
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		return ref
	}
	return f.base + "/" + strings.TrimLeft(ref, "/")
}

// rawID accepts both string and numeric ids.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}
