package carousel

import (
	"context"
	"sync"
	"time"
)

// Status is what the render surface should show around the slides.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusEmpty  // fetched, but nothing for this device class
	StatusFailed // last fetch failed; offer a retry
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Source yields the full slide collection.
type Source interface {
	Fetch(ctx context.Context) ([]Slide, error)
}

// Options configures a Carousel. Zero values take the package defaults.
type Options struct {
	SlideDuration  time.Duration
	SwipeThreshold float64
	Breakpoint     int
	// ResizeDebounce delays re-filtering until resizes settle. Zero applies
	// every resize immediately.
	ResizeDebounce time.Duration
	Clock          Clock
}

// Carousel wires the fetcher, device classifier, slide filter, playback
// engine and interaction handler for one mounted carousel.
type Carousel struct {
	source     Source
	engine     *Engine
	filter     *Filter
	input      *Interaction
	clock      Clock
	breakpoint int
	debounce   time.Duration

	mu          sync.Mutex
	status      Status
	lastErr     error
	resizeTimer Timer
	resizeToken uint64
}

// New mounts a carousel for a surface of the given width. Nothing is fetched
// until Refresh is called.
func New(source Source, width int, opts Options) *Carousel {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Breakpoint <= 0 {
		opts.Breakpoint = DefaultBreakpoint
	}
	engine := NewEngine(EngineOptions{SlideDuration: opts.SlideDuration, Clock: opts.Clock})
	return &Carousel{
		source:     source,
		engine:     engine,
		filter:     NewFilter(engine, Classify(width, opts.Breakpoint)),
		input:      NewInteraction(engine, opts.SwipeThreshold),
		clock:      opts.Clock,
		breakpoint: opts.Breakpoint,
		debounce:   opts.ResizeDebounce,
		status:     StatusLoading,
	}
}

func (c *Carousel) Engine() *Engine { return c.engine }

func (c *Carousel) Input() *Interaction { return c.input }

func (c *Carousel) DeviceClass() DeviceClass { return c.filter.DeviceClass() }

// Slides returns the active (filtered) slide sequence.
func (c *Carousel) Slides() []Slide { return c.filter.Current().Slides() }

// Refresh fetches the collection and installs it. On failure the carousel
// shows no slides, stops, and keeps the error for the retry affordance.
func (c *Carousel) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusReady && c.status != StatusEmpty {
		c.status = StatusLoading
	}
	c.mu.Unlock()

	slides, err := c.source.Fetch(ctx)
	if err != nil {
		c.filter.SetSlides(nil)
		c.mu.Lock()
		c.status = StatusFailed
		c.lastErr = err
		c.mu.Unlock()
		return err
	}

	seq := c.filter.SetSlides(slides)
	c.mu.Lock()
	c.lastErr = nil
	c.status = statusFor(seq)
	c.mu.Unlock()
	return nil
}

// Resize reports a new surface width.
func (c *Carousel) Resize(width int) {
	class := Classify(width, c.breakpoint)
	if c.debounce <= 0 {
		c.applyClass(class)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resizeTimer != nil {
		c.resizeTimer.Stop()
	}
	c.resizeToken++
	token := c.resizeToken
	c.resizeTimer = c.clock.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		if token != c.resizeToken {
			c.mu.Unlock()
			return
		}
		c.resizeTimer = nil
		c.mu.Unlock()
		c.applyClass(class)
	})
}

func (c *Carousel) applyClass(class DeviceClass) {
	seq, changed := c.filter.SetDeviceClass(class)
	if !changed {
		return
	}
	c.mu.Lock()
	if c.status != StatusFailed && c.status != StatusLoading {
		c.status = statusFor(seq)
	}
	c.mu.Unlock()
}

// Status returns the surface status and, when failed, the fetch error.
func (c *Carousel) Status() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.lastErr
}

// Close unmounts the carousel, cancelling every pending timer.
func (c *Carousel) Close() {
	c.mu.Lock()
	if c.resizeTimer != nil {
		c.resizeTimer.Stop()
		c.resizeTimer = nil
	}
	c.resizeToken++
	c.mu.Unlock()
	c.engine.Close()
}

func statusFor(seq *Sequence) Status {
	if seq.Len() == 0 {
		return StatusEmpty
	}
	return StatusReady
}
