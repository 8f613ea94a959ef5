package carousel

import "math"

// DefaultSwipeThreshold is the horizontal travel a release needs before it
// counts as a swipe.
const DefaultSwipeThreshold = 50.0

// Player is the set of playback commands the interaction handler issues.
type Player interface {
	Pause()
	Resume()
	Next()
	Previous()
	GoTo(i int)
}

// Gesture is what a pointer release was interpreted as.
type Gesture int

const (
	GestureNone Gesture = iota
	GestureSwipeLeft
	GestureSwipeRight
)

func (g Gesture) String() string {
	switch g {
	case GestureSwipeLeft:
		return "swipe-left"
	case GestureSwipeRight:
		return "swipe-right"
	default:
		return "none"
	}
}

// Interaction turns raw pointer, touch and hover events into playback commands.
// It is driven from a single event loop and is not safe for concurrent use.
type Interaction struct {
	player    Player
	threshold float64

	pressed bool
	hovered bool
	startX  float64
}

func NewInteraction(player Player, threshold float64) *Interaction {
	if threshold <= 0 {
		threshold = DefaultSwipeThreshold
	}
	return &Interaction{player: player, threshold: threshold}
}

// PointerDown starts a drag and pauses playback.
func (h *Interaction) PointerDown(x float64) {
	h.pressed = true
	h.startX = x
	h.player.Pause()
}

// Dragging reports whether a pointer is held down.
func (h *Interaction) Dragging() bool { return h.pressed }

// PointerUp ends a drag. A release past the threshold navigates (leftward
// travel goes forward) and then resumes from the new slide; anything shorter
// resumes the current slide where it was paused. While the pointer hovers
// the carousel playback stays paused until HoverLeave.
func (h *Interaction) PointerUp(x float64) Gesture {
	if !h.pressed {
		return GestureNone
	}
	h.pressed = false

	dx := x - h.startX
	gesture := GestureNone
	if math.Abs(dx) > h.threshold {
		if dx < 0 {
			gesture = GestureSwipeLeft
			h.player.Next()
		} else {
			gesture = GestureSwipeRight
			h.player.Previous()
		}
	}
	if !h.hovered {
		h.player.Resume()
	}
	return gesture
}

// PointerCancel abandons a drag as if it were released in place.
func (h *Interaction) PointerCancel() {
	if !h.pressed {
		return
	}
	h.pressed = false
	if !h.hovered {
		h.player.Resume()
	}
}

// IndicatorClick jumps straight to slide i.
func (h *Interaction) IndicatorClick(i int) {
	h.player.GoTo(i)
}

func (h *Interaction) HoverEnter() {
	h.hovered = true
	h.player.Pause()
}

func (h *Interaction) HoverLeave() {
	h.hovered = false
	h.player.Resume()
}
