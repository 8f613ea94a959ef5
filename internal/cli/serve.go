package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/treefix50/estate/internal/auth"
	"github.com/treefix50/estate/internal/config"
	"github.com/treefix50/estate/internal/mail"
	"github.com/treefix50/estate/internal/media"
	"github.com/treefix50/estate/internal/server"
	"github.com/treefix50/estate/internal/telemetry"
)

const (
	shutdownTimeout = 10 * time.Second
	janitorInterval = time.Hour
	mediaCacheSize  = 4096
)

func newServeCommand(a *app, version string) *cobra.Command {
	var readOnly bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the content and admin HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), version, readOnly)
		},
	}
	cmd.Flags().StringVar(&a.addr, "addr", "", "override the listen address")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "open the database read-only and reject writes")
	return cmd
}

func (a *app) serve(ctx context.Context, version string, readOnly bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg
	if a.addr != "" {
		cfg.Addr = a.addr
	}

	logger, err := a.logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := a.openStore(readOnly)
	if err != nil {
		return err
	}
	defer store.Close()

	uploads, err := media.NewStore(cfg.Uploads.Dir, media.Options{
		MaxSize:   cfg.Uploads.MaxSize,
		CacheSize: mediaCacheSize,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	authManager := auth.NewManager(store, cfg.Auth.SessionTTL)
	if !readOnly {
		password, err := authManager.InitializeAdmin(cfg.Auth.AdminEmail)
		if err != nil {
			return err
		}
		if password != "" {
			logger.Warn("created initial admin account, change this password after first login",
				zap.String("email", auth.NormalizeEmail(cfg.Auth.AdminEmail)),
				zap.String("password", password),
			)
		}
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("flush traces", zap.Error(err))
		}
	}()

	srv, err := server.New(cfg.Addr, server.Options{
		Store:           store,
		Auth:            authManager,
		Media:           uploads,
		Mailer:          newMailer(cfg.Mail, logger),
		Logger:          logger,
		CORSOrigins:     cfg.CORS.Origins,
		RequireAuth:     cfg.Auth.RequireAuth,
		LoginInterval:   cfg.RateLimit.LoginInterval,
		ContactInterval: cfg.RateLimit.ContactInterval,
		Version:         version,
	})
	if err != nil {
		return err
	}
	if !cfg.Auth.RequireAuth {
		logger.Warn("authentication disabled, every write route is open")
	}

	g, gctx := errgroup.WithContext(ctx)
	logger.Info("starting estate",
		zap.String("version", version),
		zap.String("uploads", uploads.Root()),
		zap.Bool("readOnly", readOnly),
	)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if !readOnly {
		g.Go(func() error {
			sessionJanitor(gctx, authManager, logger, janitorInterval)
			return nil
		})
	}
	if cfg.Uploads.Watch {
		g.Go(func() error {
			watchUploads(gctx, uploads, logger)
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchUploads keeps the upload existence cache in step with the disk until
// ctx is done. If the watcher cannot start or stops early the cache is
// switched off so the API keeps serving correct answers.
func watchUploads(ctx context.Context, uploads *media.Store, logger *zap.Logger) {
	watcher, err := media.NewWatcher(uploads, logger)
	if err == nil {
		err = watcher.Run(ctx)
	}
	if ctx.Err() != nil {
		return
	}
	logger.Warn("upload watcher stopped", zap.Error(err))
	uploads.DisableCache()
}

// sessionJanitor drops expired sessions until ctx is done.
func sessionJanitor(ctx context.Context, m *auth.Manager, logger *zap.Logger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.CleanupExpiredSessions(); err != nil {
				logger.Warn("clean expired sessions", zap.Error(err))
			}
		}
	}
}

// newMailer sends through Resend when an API key is configured and only logs
// inquiries otherwise.
func newMailer(cfg config.MailConfig, logger *zap.Logger) mail.Mailer {
	if cfg.ResendAPIKey == "" {
		logger.Warn("no resend api key configured, contact inquiries will only be logged")
		return mail.LogMailer{Logger: logger}
	}
	if cfg.To == "" {
		logger.Warn("mail.to is empty, contact inquiries will fail")
	}
	return mail.NewResendMailer(cfg.Endpoint, cfg.ResendAPIKey, cfg.From, cfg.To, cfg.Timeout)
}
