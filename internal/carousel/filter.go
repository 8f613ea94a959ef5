package carousel

import "sync"

// Select returns the slides tagged for class, keeping their original order.
func Select(all []Slide, class DeviceClass) []Slide {
	out := make([]Slide, 0, len(all))
	for _, slide := range all {
		if slide.Device == class {
			out = append(out, slide)
		}
	}
	return out
}

// Loader receives every sequence the filter produces.
type Loader interface {
	Load(seq *Sequence)
}

// Filter keeps the fetched slides and the current device class, and installs
// a fresh sequence in its Loader whenever either input changes.
type Filter struct {
	mu      sync.Mutex
	target  Loader
	all     []Slide
	fetched bool
	class   DeviceClass
	current *Sequence
}

func NewFilter(target Loader, class DeviceClass) *Filter {
	return &Filter{target: target, class: class}
}

// SetSlides replaces the fetched collection. Each call is a new collection,
// even when the contents match the previous one.
func (f *Filter) SetSlides(all []Slide) *Sequence {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.all = append([]Slide(nil), all...)
	f.fetched = true
	return f.installLocked()
}

// SetDeviceClass records the class for the current viewport. Only a change of
// class produces a new sequence; the bool reports whether one was installed.
func (f *Filter) SetDeviceClass(class DeviceClass) (*Sequence, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if class == f.class {
		return f.current, false
	}
	f.class = class
	if !f.fetched {
		return f.current, false
	}
	return f.installLocked(), true
}

func (f *Filter) DeviceClass() DeviceClass {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.class
}

// Current returns the sequence most recently handed to the loader.
func (f *Filter) Current() *Sequence {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *Filter) installLocked() *Sequence {
	f.current = NewSequence(Select(f.all, f.class))
	if f.target != nil {
		f.target.Load(f.current)
	}
	return f.current
}
