package proc

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/procmacro/internal/config"
	"github.com/leapstack-labs/procmacro/internal/stdext"
)

// reloadDebounce groups the burst of events produced by rewriting a binary.
const reloadDebounce = 200 * time.Millisecond

// Service owns the shared expander server. The server is created on first use and,
// when watching is enabled, replaced by a fresh one whenever the expander executable
// is rewritten. Server replacements are serialized.
type Service struct {
	cfg    config.ExpanderConfig
	logger *slog.Logger
	server *stdext.AsyncValue[*Server]

	watcher   *fsnotify.Watcher
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewService creates a service for cfg. With cfg.Watch set it starts watching the
// directory of the expander executable.
func NewService(cfg config.ExpanderConfig, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg.ApplyDefaults()

	s := &Service{
		cfg:    cfg,
		logger: logger,
		server: stdext.NewAsyncValue[*Server](nil, logger),
		cancel: func() {},
	}

	if cfg.Watch && cfg.Path != "" {
		if err := s.startWatching(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewServiceFromDir creates a service from the procmacro.yaml found in dir or the
// nearest parent, for hosts that embed the expander without the CLI.
func NewServiceFromDir(dir string, logger *slog.Logger) (*Service, error) {
	project, err := config.LoadProject(dir)
	if err != nil {
		return nil, err
	}
	return NewService(project.Expander, logger)
}

// Server returns the current server, creating it if needed. It returns nil when no
// expander executable is available or the service is closed.
func (s *Service) Server() *Server {
	if srv := s.server.Get(); srv != nil {
		return srv
	}
	return s.server.UpdateSync(func(cur *Server) *Server {
		if cur != nil || s.closed.Load() {
			return cur
		}
		return TryCreateServer(s.cfg, s.logger)
	})
}

// Expander returns an expander that always uses the service's current server.
func (s *Service) Expander() *Expander {
	return newExpander(s.Server, s.logger)
}

// Reload replaces the current server with a fresh one and closes the old one.
// In-flight requests on the old server fail and may be retried by the caller.
func (s *Service) Reload(ctx context.Context) error {
	res := <-s.server.UpdateAsync(ctx, func(_ context.Context, old *Server) (*Server, error) {
		if s.closed.Load() {
			return old, nil
		}
		next := TryCreateServer(s.cfg, s.logger)
		if old != nil {
			_ = old.Close()
		}
		return next, nil
	})
	return res.Err
}

// Close stops watching and closes the current server. Later calls to Server return nil.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		if s.watcher != nil {
			err = s.watcher.Close()
		}
		s.wg.Wait()
		s.server.UpdateSync(func(cur *Server) *Server {
			if cur != nil {
				_ = cur.Close()
			}
			return nil
		})
	})
	return err
}

func (s *Service) startWatching() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: binaries are usually replaced by rename, which drops a
	// watch on the file itself.
	if err := watcher.Add(filepath.Dir(s.cfg.Path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch expander directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.watcher = watcher
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watchLoop(ctx, watcher)
	}()
	return nil
}

// watchLoop handles file system events.
func (s *Service) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	target := filepath.Clean(s.cfg.Path)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				s.logger.Info("expander executable changed, restarting", "path", target)
				if err := s.Reload(ctx); err != nil && ctx.Err() == nil {
					s.logger.Error("failed to restart expander", "error", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "error", err)
		}
	}
}
