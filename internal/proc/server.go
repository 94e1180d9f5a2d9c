package proc

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/leapstack-labs/procmacro/internal/config"
	"github.com/leapstack-labs/procmacro/internal/protocol"
)

// Server sends requests to a pool of processes running one expander executable.
type Server struct {
	cfg    config.ExpanderConfig
	pool   *Pool
	logger *slog.Logger

	cantRunOnce sync.Once
}

// TryCreateServer returns a server for the configured expander, or nil when no
// executable is configured or it does not exist.
func TryCreateServer(cfg config.ExpanderConfig, logger *slog.Logger) *Server {
	if cfg.Path == "" {
		return nil
	}
	if info, err := os.Stat(cfg.Path); err != nil || info.IsDir() {
		return nil
	}
	return NewServer(cfg, logger)
}

// NewServer creates a server without checking the executable. Processes are started
// on first use.
func NewServer(cfg config.ExpanderConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg.ApplyDefaults()
	logger = logger.With("expander", cfg.Path)

	s := &Server{cfg: cfg, logger: logger}
	s.pool = NewPool(cfg.PoolSize, func() (*Process, error) {
		return StartProcess(cfg, logger)
	}, logger)
	return s
}

// Send allocates a process, performs one round trip and returns the process to the pool.
func (s *Server) Send(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	proc, err := s.pool.Alloc(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Free(proc)
	return proc.Send(ctx, req)
}

// Path returns the expander executable path.
func (s *Server) Path() string {
	return s.cfg.Path
}

// Stats returns a snapshot of the server's pool.
func (s *Server) Stats() PoolStats {
	return s.pool.Stats()
}

// Close shuts the pool down and kills all processes.
func (s *Server) Close() error {
	s.pool.Close()
	return nil
}

// warnCantRun logs a failure to start the expander once per server.
func (s *Server) warnCantRun(err error) {
	s.cantRunOnce.Do(func() {
		s.logger.Warn("failed to run proc macro expander", "error", err)
	})
}
