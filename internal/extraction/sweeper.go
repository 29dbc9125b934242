package extraction

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ScratchSweeper periodically deletes files in a scratch directory that
// are older than a fixed age. File age is the only criterion; the jobs
// that created the files are expected to have finished or failed long
// before the threshold.
type ScratchSweeper struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

func NewScratchSweeper(dir string, maxAge, interval time.Duration) *ScratchSweeper {
	return &ScratchSweeper{
		dir:      dir,
		maxAge:   maxAge,
		interval: interval,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *ScratchSweeper) Start() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop. Safe to call more than once.
func (s *ScratchSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Sweep deletes every file in the scratch directory older than the age
// threshold. Errors are logged and skipped so one bad entry never stops
// the sweep.
func (s *ScratchSweeper) Sweep() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		slog.Default().Warn("failed to read scratch directory", "dir", s.dir, "error", err)
		return
	}

	cutoff := s.now().Add(-s.maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			slog.Default().Warn("failed to remove scratch file", "path", path, "error", err)
		}
	}
}
