// Package supervisor keeps a harvester child process alive, inferring
// liveness from the mtime of its progress log rather than from any channel
// into the child.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pressfeed/harvester/internal/harvest"
	"github.com/pressfeed/harvester/internal/metrics"
	"github.com/pressfeed/harvester/internal/progress"
)

// Config controls the supervision loop.
type Config struct {
	// ProgressPath is the child's progress log whose mtime signals liveness.
	ProgressPath string
	// PollInterval is how often liveness is evaluated.
	PollInterval time.Duration
	// StalenessThreshold is how long the progress log may sit untouched
	// before the child is presumed hung.
	StalenessThreshold time.Duration
	// TerminateGrace is how long a terminated child gets to exit before it
	// is killed outright.
	TerminateGrace time.Duration
}

// Process is a supervised child.
type Process interface {
	// Done is closed when the process has exited.
	Done() <-chan struct{}
	// Err returns the exit error once Done is closed.
	Err() error
	// Terminate asks the process to exit, escalating to a kill after grace.
	Terminate(grace time.Duration) error
}

// Launcher spawns one child process.
type Launcher interface {
	Launch(ctx context.Context) (Process, error)
}

// Supervisor restarts its child when it exits unexpectedly or when the
// progress log goes stale.
type Supervisor struct {
	cfg      Config
	launcher Launcher
	clock    harvest.Clock
	logger   *zap.Logger

	// lastActivity is a seam over progress.LastActivity for tests.
	lastActivity func(path string) (time.Time, bool, error)
}

// New constructs a Supervisor.
func New(cfg Config, launcher Launcher, clock harvest.Clock, logger *zap.Logger) (*Supervisor, error) {
	if launcher == nil {
		return nil, fmt.Errorf("launcher is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.ProgressPath == "" {
		return nil, fmt.Errorf("progress path is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = 300 * time.Second
	}
	if cfg.TerminateGrace <= 0 {
		cfg.TerminateGrace = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		cfg:          cfg,
		launcher:     launcher,
		clock:        clock,
		logger:       logger,
		lastActivity: progress.LastActivity,
	}, nil
}

// Run supervises until the context is canceled. The child is terminated on
// the way out.
func (s *Supervisor) Run(ctx context.Context) error {
	proc, launchedAt, err := s.launch(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down, terminating child")
			if err := proc.Terminate(s.cfg.TerminateGrace); err != nil {
				s.logger.Warn("terminate on shutdown failed", zap.Error(err))
			}
			return ctx.Err()

		case <-proc.Done():
			s.logger.Warn("child exited unexpectedly, restarting", zap.Error(proc.Err()))
			metrics.SupervisorRestart(metrics.RestartReasonExit)
			proc, launchedAt, err = s.launch(ctx)
			if err != nil {
				return err
			}

		case <-ticker.C:
			if !s.stale(launchedAt) {
				continue
			}
			s.logger.Warn("progress log went stale, restarting child",
				zap.String("path", s.cfg.ProgressPath),
				zap.Duration("threshold", s.cfg.StalenessThreshold),
			)
			metrics.SupervisorRestart(metrics.RestartReasonStale)
			if err := proc.Terminate(s.cfg.TerminateGrace); err != nil {
				s.logger.Warn("terminate stale child failed", zap.Error(err))
			}
			proc, launchedAt, err = s.launch(ctx)
			if err != nil {
				return err
			}
		}
	}
}

func (s *Supervisor) launch(ctx context.Context) (Process, time.Time, error) {
	proc, err := s.launcher.Launch(ctx)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("launch child: %w", err)
	}
	at := s.clock.Now()
	s.logger.Info("child launched")
	return proc, at, nil
}

// stale evaluates liveness from the progress log mtime. A missing log is
// judged against the launch time, so a child that never writes anything
// still gets restarted.
func (s *Supervisor) stale(launchedAt time.Time) bool {
	now := s.clock.Now()
	last, ok, err := s.lastActivity(s.cfg.ProgressPath)
	if err != nil {
		s.logger.Warn("progress log unreadable", zap.Error(err))
		return false
	}
	if !ok {
		last = launchedAt
	}
	return progress.Stale(now, last, s.cfg.StalenessThreshold)
}
