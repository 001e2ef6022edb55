package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// CommandLauncher spawns the harvester child as an OS process.
type CommandLauncher struct {
	Path   string
	Args   []string
	Env    []string
	Logger *zap.Logger
}

// Launch starts the child with stdout/stderr inherited.
func (l *CommandLauncher) Launch(ctx context.Context) (Process, error) {
	cmd := exec.CommandContext(ctx, l.Path, l.Args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), l.Env...)
	// Let the supervisor own termination rather than the context.
	cmd.Cancel = func() error { return nil }

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start child %q: %w", l.Path, err)
	}
	if l.Logger != nil {
		l.Logger.Info("child process started",
			zap.String("path", l.Path),
			zap.Int("pid", cmd.Process.Pid),
		)
	}

	p := &osProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	}()
	return p, nil
}

type osProcess struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu  sync.Mutex
	err error
}

func (p *osProcess) Done() <-chan struct{} { return p.done }

func (p *osProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Terminate sends SIGTERM, waits up to grace for exit, then kills.
func (p *osProcess) Terminate(grace time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal child: %w", err)
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
	}

	if err := p.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill child: %w", err)
	}
	<-p.done
	return nil
}
