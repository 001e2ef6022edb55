// Package progress implements the crawl progress-signal sink and the
// liveness inference the supervisor builds on top of it.
//
// The sink is an append-only file of timestamped lines. It is not a data
// channel: the supervisor only ever consumes "time since last modification",
// so losing lines is harmless while losing writes is not.
package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Clock is the minimal time source the sink needs.
type Clock interface {
	Now() time.Time
}

// FileSink appends timestamped progress lines to a single file.
type FileSink struct {
	mu    sync.Mutex
	f     *os.File
	clock Clock
}

// NewFileSink opens (creating if needed) the signal file at path. A
// pre-existing file from an earlier run is rotated to backupPath first, so
// each run's signal history starts fresh; pass an empty backupPath to skip
// rotation.
func NewFileSink(path, backupPath string, clock Clock) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create progress dir for %s: %w", path, err)
	}
	if backupPath != "" {
		if _, err := os.Stat(path); err == nil {
			if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("remove stale backup %s: %w", backupPath, err)
			}
			if err := os.Rename(path, backupPath); err != nil {
				return nil, fmt.Errorf("rotate progress file to %s: %w", backupPath, err)
			}
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open progress file %s: %w", path, err)
	}
	return &FileSink{f: f, clock: clock}, nil
}

// Signal appends one timestamped line and syncs it to disk. Failures are
// swallowed: a progress write must never fault the pipeline it observes.
func (s *FileSink) Signal(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return
	}
	line := fmt.Sprintf("%s %s\n", s.clock.Now().UTC().Format(time.RFC3339), message)
	if _, err := s.f.WriteString(line); err != nil {
		return
	}
	_ = s.f.Sync()
}

// Close releases the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// LastActivity reports when the signal file was last written. A missing file
// returns ok=false rather than an error: before the child's first write
// there is simply no signal yet.
func LastActivity(path string) (time.Time, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("stat progress file %s: %w", path, err)
	}
	return info.ModTime(), true, nil
}
