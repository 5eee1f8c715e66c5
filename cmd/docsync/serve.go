package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/xraph/docsync/api"
	"github.com/xraph/docsync/engine"
)

var (
	serveTypesFile string
	serveMigrate   bool
	serveNoHTTP    bool
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "run",
	Short:   "Run the worker pool and the operator HTTP API",
	Long: `Run the worker pool, the sweeper and the operator HTTP API until
interrupted.

With --types-file the definitions are applied on start and re-applied
whenever the file changes.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return withRuntime(ctx, func(rt *runtime) error {
			return serve(ctx, rt)
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveTypesFile, "types-file", "", "apply and watch sync job type definitions")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "run migrations before starting")
	serveCmd.Flags().BoolVar(&serveNoHTTP, "no-http", false, "run workers only")
}

func serve(ctx context.Context, rt *runtime) error {
	if serveMigrate {
		if err := rt.migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	if serveTypesFile != "" {
		if err := applyTypeFile(ctx, rt.eng, serveTypesFile); err != nil {
			return err
		}
		go watchTypeFile(ctx, rt.eng, serveTypesFile)
	}

	if err := rt.eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	var srv *http.Server
	errCh := make(chan error, 1)
	if !serveNoHTTP {
		srv = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.New(rt.eng, logger).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("http api listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
		logger.Error("http api failed", slog.String("error", runErr.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Worker.ShutdownTimeout)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", slog.String("error", err.Error()))
		}
	}
	if err := rt.eng.Stop(shutdownCtx); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// applyTypeFile creates or replaces every type in path.
func applyTypeFile(ctx context.Context, eng *engine.Engine, path string) error {
	types, err := loadTypeFile(path)
	if err != nil {
		return err
	}
	for _, t := range types {
		if err := eng.ApplyType(ctx, t); err != nil {
			return fmt.Errorf("apply type %q: %w", t.Name, err)
		}
	}
	logger.Info("sync job types applied", slog.String("file", path), slog.Int("count", len(types)))
	return nil
}

// watchTypeFile re-applies path whenever it is written. The directory is
// watched so editors that replace the file are picked up.
func watchTypeFile(ctx context.Context, eng *engine.Engine, path string) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("types watcher", slog.String("error", err.Error()))
		return
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		logger.Error("types watcher", slog.String("error", err.Error()))
		return
	}

	const debounce = 200 * time.Millisecond
	var (
		timer  *time.Timer
		reload = make(chan struct{}, 1)
	)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			if err := applyTypeFile(ctx, eng, path); err != nil {
				logger.Error("reload sync job types", slog.String("error", err.Error()))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("types watcher", slog.String("error", err.Error()))
		}
	}
}
