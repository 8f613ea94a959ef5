package carousel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingPlayer struct {
	calls []string
}

func (p *recordingPlayer) Pause()    { p.calls = append(p.calls, "pause") }
func (p *recordingPlayer) Resume()   { p.calls = append(p.calls, "resume") }
func (p *recordingPlayer) Next()     { p.calls = append(p.calls, "next") }
func (p *recordingPlayer) Previous() { p.calls = append(p.calls, "previous") }
func (p *recordingPlayer) GoTo(i int) {
	p.calls = append(p.calls, "goto:"+string(rune('0'+i)))
}

func TestInteractionGestures(t *testing.T) {
	tests := []struct {
		name    string
		from    float64
		to      float64
		gesture Gesture
		calls   []string
	}{
		{"swipe left", 200, 120, GestureSwipeLeft, []string{"pause", "next", "resume"}},
		{"swipe right", 100, 151, GestureSwipeRight, []string{"pause", "previous", "resume"}},
		{"short drag", 100, 90, GestureNone, []string{"pause", "resume"}},
		{"exactly threshold", 100, 50, GestureNone, []string{"pause", "resume"}},
		{"tap", 100, 100, GestureNone, []string{"pause", "resume"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &recordingPlayer{}
			h := NewInteraction(p, 50)

			h.PointerDown(tt.from)
			assert.True(t, h.Dragging())
			got := h.PointerUp(tt.to)

			assert.Equal(t, tt.gesture, got)
			assert.Equal(t, tt.calls, p.calls)
			assert.False(t, h.Dragging())
		})
	}
}

func TestInteractionReleaseWithoutPress(t *testing.T) {
	p := &recordingPlayer{}
	h := NewInteraction(p, 0)

	assert.Equal(t, GestureNone, h.PointerUp(10))
	h.PointerCancel()
	assert.Empty(t, p.calls)
}

func TestInteractionCancelResumes(t *testing.T) {
	p := &recordingPlayer{}
	h := NewInteraction(p, 50)

	h.PointerDown(10)
	h.PointerCancel()
	assert.Equal(t, []string{"pause", "resume"}, p.calls)
}

func TestInteractionIndicatorAndHover(t *testing.T) {
	p := &recordingPlayer{}
	h := NewInteraction(p, 50)

	h.IndicatorClick(2)
	h.HoverEnter()
	h.HoverLeave()
	assert.Equal(t, []string{"goto:2", "pause", "resume"}, p.calls)
}

func TestGestureString(t *testing.T) {
	assert.Equal(t, "swipe-left", GestureSwipeLeft.String())
	assert.Equal(t, "swipe-right", GestureSwipeRight.String())
	assert.Equal(t, "none", GestureNone.String())
}

func TestInteractionHoverHoldsPauseAcrossDrag(t *testing.T) {
	p := &recordingPlayer{}
	h := NewInteraction(p, 50)

	h.HoverEnter()
	h.PointerDown(100)
	assert.Equal(t, GestureNone, h.PointerUp(90))
	h.PointerDown(200)
	assert.Equal(t, GestureSwipeLeft, h.PointerUp(100))
	h.PointerDown(100)
	h.PointerCancel()
	assert.Equal(t, []string{"pause", "pause", "pause", "next", "pause"}, p.calls)

	h.HoverLeave()
	assert.Equal(t, "resume", p.calls[len(p.calls)-1])

	p.calls = nil
	h.PointerDown(100)
	h.PointerUp(95)
	assert.Equal(t, []string{"pause", "resume"}, p.calls)
}
