// Package viewer renders a carousel in the terminal. It is the bubbletea
// surface over carousel.Carousel: ticks repaint the progress indicators,
// keys and mouse events become playback commands.
package viewer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/treefix50/estate/internal/carousel"
)

const (
	defaultTickInterval = 100 * time.Millisecond
	defaultCellWidth    = 8
	minSegmentWidth     = 3
	minBoxHeight        = 5
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#1E40AF")).Padding(0, 1)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	slideStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#3B82F6")).Align(lipgloss.Center, lipgloss.Center)
	captionStyle = lipgloss.NewStyle().Bold(true)
	refStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")).Underline(true)
	placeholder  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// Options configures the model. Zero values take the defaults.
type Options struct {
	// TickInterval is how often the progress indicators repaint.
	TickInterval time.Duration
	// CellWidth converts terminal columns into viewport pixels for the
	// device classifier and swipe threshold.
	CellWidth int
	// ResolveImage turns a slide's image reference into something printable,
	// usually an absolute URL.
	ResolveImage func(ref string) string
	Context      context.Context
}

type tickMsg time.Time

type refreshedMsg struct{ err error }

// Model is the bubbletea model for one mounted carousel.
type Model struct {
	carousel *carousel.Carousel
	opts     Options
	bar      progress.Model

	width  int
	height int

	snap    carousel.Snapshot
	status  carousel.Status
	err     error
	hovered bool
}

func New(c *carousel.Carousel, opts Options) Model {
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.CellWidth <= 0 {
		opts.CellWidth = defaultCellWidth
	}
	if opts.ResolveImage == nil {
		opts.ResolveImage = func(ref string) string { return ref }
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	status, err := c.Status()
	return Model{
		carousel: c,
		opts:     opts,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		snap:     c.Engine().Snapshot(),
		status:   status,
		err:      err,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refresh() tea.Cmd {
	c, ctx := m.carousel, m.opts.Context
	return func() tea.Msg {
		return refreshedMsg{err: c.Refresh(ctx)}
	}
}

func (m Model) sync() Model {
	m.snap = m.carousel.Engine().Snapshot()
	m.status, m.err = m.carousel.Status()
	return m
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.carousel.Resize(msg.Width * m.opts.CellWidth)
		return m.sync(), nil

	case tickMsg:
		return m.sync(), m.tick()

	case refreshedMsg:
		return m.sync(), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg), nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	engine := m.carousel.Engine()
	switch key := msg.String(); key {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "right", "l":
		engine.Next()
	case "left", "h":
		engine.Previous()
	case " ", "p":
		if engine.Snapshot().Running() {
			engine.Pause()
		} else {
			engine.Resume()
		}
	case "r":
		m.status = carousel.StatusLoading
		return m, m.refresh()
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			m.carousel.Input().IndicatorClick(int(key[0] - '1'))
		}
	}
	return m.sync(), nil
}

func (m Model) handleMouse(msg tea.MouseMsg) Model {
	input := m.carousel.Input()
	x := float64(msg.X * m.opts.CellWidth)
	top, bottom, indicatorY := m.layout()

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || m.status != carousel.StatusReady {
			break
		}
		if msg.Y == indicatorY {
			if i, ok := m.indicatorAt(msg.X); ok {
				input.IndicatorClick(i)
			}
			break
		}
		if msg.Y >= top && msg.Y < bottom {
			input.PointerDown(x)
		}

	case tea.MouseActionRelease:
		if input.Dragging() {
			input.PointerUp(x)
		}

	case tea.MouseActionMotion:
		if input.Dragging() {
			break
		}
		over := m.status == carousel.StatusReady && msg.Y >= top && msg.Y < bottom
		switch {
		case over && !m.hovered:
			m.hovered = true
			input.HoverEnter()
		case !over && m.hovered:
			m.hovered = false
			input.HoverLeave()
		}
	}
	return m.sync()
}

// layout returns the first and one-past-last rows of the slide box and the
// row holding the indicators.
func (m Model) layout() (top, bottom, indicatorY int) {
	box := m.height - 4
	if box < minBoxHeight {
		box = minBoxHeight
	}
	return 1, 1 + box, 1 + box
}

func (m Model) segmentWidth() int {
	n := m.snap.SlideCount
	if n == 0 {
		return 0
	}
	w := (m.width - (n - 1)) / n
	if w < minSegmentWidth {
		w = minSegmentWidth
	}
	return w
}

// indicatorAt maps a column on the indicator row to a slide index. The gap
// between segments belongs to no slide.
func (m Model) indicatorAt(col int) (int, bool) {
	w := m.segmentWidth()
	if w == 0 || col < 0 {
		return 0, false
	}
	i := col / (w + 1)
	if col%(w+1) >= w || i >= m.snap.SlideCount {
		return 0, false
	}
	return i, true
}

func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	_, bottom, _ := m.layout()
	boxHeight := bottom - 1

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("carousel"),
		" ",
		statusStyle.Render(m.statusLine()),
	)

	var body string
	switch m.status {
	case carousel.StatusLoading:
		body = placeholder.Render("Loading slides...")
	case carousel.StatusFailed:
		body = errorStyle.Render(fmt.Sprintf("Could not load slides: %v", m.err)) + "\n\n" + helpStyle.Render("press r to retry")
	case carousel.StatusEmpty:
		body = placeholder.Render(fmt.Sprintf("No slides for %s screens", m.carousel.DeviceClass())) + "\n\n" + helpStyle.Render("press r to reload")
	default:
		body = m.slideView()
	}

	box := slideStyle.Width(width - 2).Height(boxHeight - 2).Render(body)

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(box)
	b.WriteString("\n")
	b.WriteString(m.indicators())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("←/→ prev/next • space pause • 1-9 jump • drag to swipe • r reload • q quit"))
	return b.String()
}

func (m Model) statusLine() string {
	parts := []string{string(m.carousel.DeviceClass()), m.status.String()}
	if m.status == carousel.StatusReady {
		parts = append(parts,
			fmt.Sprintf("%d/%d", m.snap.ActiveIndex+1, m.snap.SlideCount),
			m.snap.State.String(),
		)
	}
	return strings.Join(parts, " · ")
}

func (m Model) slideView() string {
	slide, ok := m.snap.Active()
	if !ok {
		return placeholder.Render("No slide")
	}
	caption := slide.Title
	if caption == "" {
		caption = "Untitled"
	}
	var image string
	if slide.HasImage() {
		image = refStyle.Render(m.opts.ResolveImage(slide.ImageRef))
	} else {
		image = placeholder.Render("[ no image ]")
	}
	return lipgloss.JoinVertical(lipgloss.Center, captionStyle.Render(caption), "", image)
}

// indicators draws one bar per slide. The active bar fills as the slide
// plays; the others stay empty.
func (m Model) indicators() string {
	n := m.snap.SlideCount
	if n == 0 || m.status != carousel.StatusReady {
		return ""
	}
	bar := m.bar
	bar.Width = m.segmentWidth()
	segments := make([]string, 0, 2*n-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			segments = append(segments, " ")
		}
		fraction := 0.0
		if i == m.snap.ActiveIndex {
			fraction = m.snap.ElapsedFraction
		}
		segments = append(segments, bar.ViewAs(fraction))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, segments...)
}
