package progress

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func TestFileSinkWritesTimestampedLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "scraper.log")
	clock := fixedClock{now: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)}

	sink, err := NewFileSink(path, "", clock)
	require.NoError(t, err)
	defer sink.Close()

	sink.Signal("starting the harvester")
	sink.Signal("opened article https://news.example.com/a")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2026-03-14T09:26:53Z starting the harvester", lines[0])
	assert.Contains(t, lines[1], "opened article")
}

func TestFileSinkRotatesPriorRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "scraper.log")
	backup := filepath.Join(dir, "previous_scrape.log")
	require.NoError(t, os.WriteFile(path, []byte("old run\n"), 0o600))

	sink, err := NewFileSink(path, backup, fixedClock{now: time.Now()})
	require.NoError(t, err)
	defer sink.Close()

	old, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "old run\n", string(old))

	fresh, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, fresh)
}

func TestFileSinkRotationReplacesOlderBackup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "scraper.log")
	backup := filepath.Join(dir, "previous_scrape.log")
	require.NoError(t, os.WriteFile(path, []byte("run two\n"), 0o600))
	require.NoError(t, os.WriteFile(backup, []byte("run one\n"), 0o600))

	sink, err := NewFileSink(path, backup, fixedClock{now: time.Now()})
	require.NoError(t, err)
	defer sink.Close()

	old, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "run two\n", string(old))
}

func TestSignalAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scraper.log")
	sink, err := NewFileSink(path, "", fixedClock{now: time.Now()})
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	sink.Signal("after close")
	require.NoError(t, sink.Close())
}

func TestLastActivity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "scraper.log")

	_, ok, err := LastActivity(path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o600))
	ts, ok, err := LastActivity(path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}
