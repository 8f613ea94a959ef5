package carousel

import (
	"sync"
	"time"
)

// DefaultSlideDuration is how long each slide stays up before advancing.
const DefaultSlideDuration = 5 * time.Second

// State is the playback state of an Engine.
type State int

const (
	StateStopped State = iota // no slides, a single slide, or torn down
	StateRunning              // timer armed, progress advancing
	StatePaused               // timer suspended, progress frozen
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Sequence is an installed slide list. Sequences are compared by pointer:
// two fetches of identical slides are still different sequences.
type Sequence struct {
	slides []Slide
}

// NewSequence copies slides into a new sequence.
func NewSequence(slides []Slide) *Sequence {
	out := make([]Slide, len(slides))
	copy(out, slides)
	return &Sequence{slides: out}
}

func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.slides)
}

// At returns the slide at i. The caller keeps i in range.
func (s *Sequence) At(i int) Slide {
	return s.slides[i]
}

// Slides returns a copy of the sequence contents.
func (s *Sequence) Slides() []Slide {
	if s == nil {
		return nil
	}
	out := make([]Slide, len(s.slides))
	copy(out, s.slides)
	return out
}

// Snapshot is a point-in-time view of the playback state.
type Snapshot struct {
	ActiveIndex     int           `json:"activeIndex"`
	ElapsedFraction float64       `json:"elapsedFraction"`
	State           State         `json:"state"`
	SlideCount      int           `json:"slideCount"`
	Remaining       time.Duration `json:"remaining"`
	Sequence        *Sequence     `json:"-"`
}

// Running mirrors the running flag of the playback state.
func (s Snapshot) Running() bool { return s.State == StateRunning }

// Active returns the slide on screen, if any.
func (s Snapshot) Active() (Slide, bool) {
	if s.Sequence.Len() == 0 || s.ActiveIndex >= s.Sequence.Len() {
		return Slide{}, false
	}
	return s.Sequence.At(s.ActiveIndex), true
}

// EngineOptions configures an Engine. Zero values take the defaults.
type EngineOptions struct {
	SlideDuration time.Duration
	Clock         Clock
}

// Engine owns slide advancement and progress for one carousel instance.
// Every method is safe to call from the render loop and from timer callbacks.
type Engine struct {
	mu       sync.Mutex
	clock    Clock
	duration time.Duration

	seq     *Sequence
	index   int
	state   State
	elapsed time.Duration // progress banked before the current running segment
	started time.Time     // start of the current running segment

	timer  Timer
	token  uint64 // bumped on every arm and cancel; stale callbacks compare against it
	closed bool

	observers map[int]func(Snapshot)
	nextObs   int
}

func NewEngine(opts EngineOptions) *Engine {
	if opts.SlideDuration <= 0 {
		opts.SlideDuration = DefaultSlideDuration
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	return &Engine{
		clock:     opts.Clock,
		duration:  opts.SlideDuration,
		observers: make(map[int]func(Snapshot)),
	}
}

// SlideDuration returns the configured per-slide display time.
func (e *Engine) SlideDuration() time.Duration { return e.duration }

// Subscribe registers fn to receive a snapshot after every discrete change
// (load, advance, navigation, pause, resume, close). The returned func removes it.
func (e *Engine) Subscribe(fn func(Snapshot)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextObs
	e.nextObs++
	e.observers[id] = fn
	return func() {
		e.mu.Lock()
		delete(e.observers, id)
		e.mu.Unlock()
	}
}

// Load installs a new sequence. Playback restarts at index 0 with no progress;
// any timer tied to the previous sequence is cancelled first.
func (e *Engine) Load(seq *Sequence) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.cancelLocked()
	e.seq = seq
	e.index = 0
	e.elapsed = 0
	if seq.Len() >= 2 {
		e.state = StateRunning
		e.started = e.clock.Now()
		e.armLocked(e.duration)
	} else {
		e.state = StateStopped
	}
	e.publishLocked()
}

// Pause freezes progress. Only a running engine can pause.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.closed || e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	e.elapsed = e.elapsedLocked(e.clock.Now())
	e.cancelLocked()
	e.state = StatePaused
	e.publishLocked()
}

// Resume continues a paused engine from its frozen progress.
func (e *Engine) Resume() {
	e.mu.Lock()
	if e.closed || e.state != StatePaused {
		e.mu.Unlock()
		return
	}
	e.state = StateRunning
	e.started = e.clock.Now()
	e.armLocked(e.duration - e.elapsed)
	e.publishLocked()
}

// Next shows the following slide, wrapping at the end.
func (e *Engine) Next() {
	e.seek(func(i, n int) int { return (i + 1) % n })
}

// Previous shows the preceding slide, wrapping at the start.
func (e *Engine) Previous() {
	e.seek(func(i, n int) int { return (i - 1 + n) % n })
}

// GoTo shows slide i. Indexes outside the installed sequence are ignored.
func (e *Engine) GoTo(i int) {
	e.seek(func(cur, n int) int {
		if i < 0 || i >= n {
			return -1
		}
		return i
	})
}

// seek moves to the index picked by pick, resetting progress and keeping the
// running or paused state. pick returns -1 to leave everything untouched.
func (e *Engine) seek(pick func(i, n int) int) {
	e.mu.Lock()
	n := e.seq.Len()
	if e.closed || n == 0 {
		e.mu.Unlock()
		return
	}
	next := pick(e.index, n)
	if next < 0 {
		e.mu.Unlock()
		return
	}
	e.index = next
	e.elapsed = 0
	if e.state == StateRunning {
		e.started = e.clock.Now()
		e.armLocked(e.duration)
	}
	e.publishLocked()
}

// Snapshot returns the current playback state with progress computed from
// the clock, so it can be polled at any rate.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(e.clock.Now())
}

// Close stops playback for good and cancels any pending timer.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.cancelLocked()
	e.state = StateStopped
	e.closed = true
	snap := e.snapshotLocked(e.clock.Now())
	observers := e.observerListLocked()
	e.observers = make(map[int]func(Snapshot))
	e.mu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}

func (e *Engine) expire(token uint64) {
	e.mu.Lock()
	if e.closed || token != e.token || e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	n := e.seq.Len()
	if n < 2 {
		e.state = StateStopped
		e.timer = nil
		e.publishLocked()
		return
	}
	e.index = (e.index + 1) % n
	e.elapsed = 0
	e.started = e.clock.Now()
	e.armLocked(e.duration)
	e.publishLocked()
}

// armLocked replaces any pending timer with one firing after d.
func (e *Engine) armLocked(d time.Duration) {
	e.cancelLocked()
	if d < 0 {
		d = 0
	}
	token := e.token
	e.timer = e.clock.AfterFunc(d, func() { e.expire(token) })
}

func (e *Engine) cancelLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.token++
}

func (e *Engine) elapsedLocked(now time.Time) time.Duration {
	elapsed := e.elapsed
	if e.state == StateRunning {
		elapsed += now.Sub(e.started)
	}
	if elapsed > e.duration {
		elapsed = e.duration
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed
}

func (e *Engine) snapshotLocked(now time.Time) Snapshot {
	snap := Snapshot{
		ActiveIndex: e.index,
		State:       e.state,
		SlideCount:  e.seq.Len(),
		Sequence:    e.seq,
	}
	if e.state == StateStopped {
		return snap
	}
	elapsed := e.elapsedLocked(now)
	snap.ElapsedFraction = float64(elapsed) / float64(e.duration)
	snap.Remaining = e.duration - elapsed
	return snap
}

func (e *Engine) observerListLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(e.observers))
	for _, fn := range e.observers {
		out = append(out, fn)
	}
	return out
}

// publishLocked releases the lock and hands the new snapshot to observers.
func (e *Engine) publishLocked() {
	snap := e.snapshotLocked(e.clock.Now())
	observers := e.observerListLocked()
	e.mu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}
