// Package carousel implements the auto-advancing image carousel: fetching and
// normalizing slides, picking the slides for the current device class, and the
// playback state machine that advances them on a timer while reacting to
// swipes, hovers and indicator clicks.
package carousel

import "strings"

// DeviceClass is the coarse bucket that decides which slides are shown.
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceDesktop DeviceClass = "desktop"
)

// DefaultBreakpoint is the viewport width at which a surface stops being mobile.
const DefaultBreakpoint = 768

// ParseDeviceClass returns the class named by s and whether it was recognised.
func ParseDeviceClass(s string) (DeviceClass, bool) {
	switch DeviceClass(strings.ToLower(strings.TrimSpace(s))) {
	case DeviceMobile:
		return DeviceMobile, true
	case DeviceDesktop:
		return DeviceDesktop, true
	default:
		return "", false
	}
}

// Classify derives the device class from a viewport width. Widths below the
// breakpoint are mobile. A non-positive breakpoint falls back to DefaultBreakpoint.
func Classify(width, breakpoint int) DeviceClass {
	if breakpoint <= 0 {
		breakpoint = DefaultBreakpoint
	}
	if width < breakpoint {
		return DeviceMobile
	}
	return DeviceDesktop
}

// Slide is one carousel entry. Slides are never mutated after the fetcher
// builds them.
type Slide struct {
	ID       string      `json:"id"`
	ImageRef string      `json:"imageRef"`
	Title    string      `json:"title"`
	Device   DeviceClass `json:"device"`
}

// HasImage reports whether the slide points at an image. Slides without one
// still take part in playback; the render surface draws a placeholder.
func (s Slide) HasImage() bool {
	return strings.TrimSpace(s.ImageRef) != ""
}
