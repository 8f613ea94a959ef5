package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/treefix50/estate/internal/carousel"
	"github.com/treefix50/estate/internal/viewer"
)

const (
	fetchTimeout = 10 * time.Second
	// initialColumns sizes the surface until the first window size arrives.
	initialColumns = 80
)

func newCarouselCommand(a *app) *cobra.Command {
	var (
		apiBase string
		logFile string
	)
	cmd := &cobra.Command{
		Use:   "carousel",
		Short: "Play the home page carousel in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiBase != "" {
				a.cfg.Carousel.APIBase = apiBase
			}
			return a.runCarousel(cmd.Context(), logFile)
		},
	}
	cmd.Flags().StringVar(&apiBase, "api", "", "override carousel.api_base")
	cmd.Flags().StringVar(&logFile, "log-file", "estate-carousel.log", "where to write logs while the viewer owns the terminal")
	return cmd
}

func (a *app) runCarousel(ctx context.Context, logFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := a.logger(logFile)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg := a.cfg.Carousel
	fetcher, err := carousel.NewFetcher(cfg.APIBase, &http.Client{Timeout: fetchTimeout})
	if err != nil {
		return err
	}

	c := carousel.New(fetcher, initialColumns*cfg.CellWidth, carousel.Options{
		SlideDuration:  cfg.SlideDuration,
		SwipeThreshold: cfg.SwipeThreshold,
		Breakpoint:     cfg.Breakpoint,
		ResizeDebounce: cfg.ResizeDebounce,
	})
	defer c.Close()

	unsubscribe := c.Engine().Subscribe(func(s carousel.Snapshot) {
		logger.Debug("playback",
			zap.Int("index", s.ActiveIndex),
			zap.Int("slides", s.SlideCount),
			zap.Stringer("state", s.State),
		)
	})
	defer unsubscribe()

	model := viewer.New(c, viewer.Options{
		TickInterval: cfg.TickInterval,
		CellWidth:    cfg.CellWidth,
		ResolveImage: fetcher.ResolveImage,
		Context:      ctx,
	})
	logger.Info("carousel started", zap.String("api", cfg.APIBase))

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if status, err := c.Status(); err != nil {
		logger.Warn("carousel closed after fetch failure", zap.Stringer("status", status), zap.Error(err))
	}
	return nil
}
