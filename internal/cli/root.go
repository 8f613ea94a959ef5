// Package cli wires the estate commands: the HTTP server, the terminal
// carousel and the maintenance tools.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/treefix50/estate/internal/config"
	"github.com/treefix50/estate/internal/logging"
	"github.com/treefix50/estate/internal/storage"
)

type app struct {
	configPath string
	logLevel   string
	addr       string
	cfg        *config.Config
}

// NewRootCommand builds the estate command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "estate",
		Short:         "Real estate marketing API and carousel viewer",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.Log.Level = a.logLevel
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "estate.yaml", "config file (missing file means defaults)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		newServeCommand(a, version),
		newCarouselCommand(a),
		newAdminCommand(a),
		newDBCommand(a),
	)
	return root
}

// logger builds the process logger. outputPaths redirects it away from
// stderr, which the terminal viewer owns.
func (a *app) logger(outputPaths ...string) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:       a.cfg.Log.Level,
		Development: a.cfg.Log.Development,
		OutputPaths: outputPaths,
	})
}

func (a *app) openStore(readOnly bool) (*storage.Store, error) {
	path := a.cfg.Database.Path
	if path != ":memory:" && !readOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	store, err := storage.Open(path, storage.Options{
		BusyTimeout: a.cfg.Database.BusyTimeout,
		Synchronous: a.cfg.Database.Synchronous,
		CacheSize:   a.cfg.Database.CacheSize,
		ReadOnly:    readOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	return store, nil
}
