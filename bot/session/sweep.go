package session

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"archivebot/core/logger"
)

// Sweeper periodically removes scratch files older than the configured
// age and prunes session records whose backing files are gone.
type Sweeper struct {
	store    *Store
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
	lock     func(userID int64) (unlock func())
}

// NewSweeper configures a sweeper; schedule uses cron syntax including
// the @every form.
func NewSweeper(store *Store, maxAge time.Duration, schedule string) *Sweeper {
	return &Sweeper{
		store:    store,
		maxAge:   maxAge,
		schedule: schedule,
		cron:     cron.New(),
		lock:     func(int64) func() { return func() {} },
	}
}

// SetLock installs the per-user lock used while pruning session records,
// so sweeps serialize with concurrent session mutations.
func (w *Sweeper) SetLock(lock func(userID int64) (unlock func())) {
	if lock != nil {
		w.lock = lock
	}
}

// Start registers the sweep job and launches the scheduler.
func (w *Sweeper) Start() error {
	if _, err := w.cron.AddFunc(w.schedule, w.Sweep); err != nil {
		return fmt.Errorf("session: schedule sweep: %w", err)
	}
	w.cron.Start()
	logger.Sweep.Info("scratch sweeper started",
		slog.String("event", "sweep.start"),
		slog.String("schedule", w.schedule),
		slog.Duration("max_age", w.maxAge),
	)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (w *Sweeper) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	logger.Sweep.Info("scratch sweeper stopped", slog.String("event", "sweep.stop"))
}

// Sweep runs one cleanup pass over the scratch root.
func (w *Sweeper) Sweep() {
	cutoff := time.Now().Add(-w.maxAge)
	removed := w.removeStale(cutoff)
	dropped := w.dropVanished()
	if removed > 0 || dropped > 0 {
		logger.Sweep.Info("scratch sweep completed",
			slog.String("event", "sweep.done"),
			slog.Int("removed", removed),
			slog.Int("dropped", dropped),
		)
	}
}

func (w *Sweeper) removeStale(cutoff time.Time) int {
	removed := 0
	root := w.store.Root()
	var emptyDirs []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root {
				emptyDirs = append(emptyDirs, path)
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				logger.Sweep.Warn("failed to remove stale file",
					slog.String("file", path), slog.Any("error", err))
				return nil
			}
			removed++
		}
		return nil
	})
	if err != nil {
		logger.Sweep.Warn("scratch walk failed", slog.Any("error", err))
	}

	// Deepest directories first so nested empties collapse upward.
	for i := len(emptyDirs) - 1; i >= 0; i-- {
		if entries, err := os.ReadDir(emptyDirs[i]); err == nil && len(entries) == 0 {
			_ = os.Remove(emptyDirs[i])
		}
	}
	return removed
}

// dropVanished prunes in-memory records whose files the sweep (or anything
// else) removed from disk.
func (w *Sweeper) dropVanished() int {
	w.store.mu.RLock()
	sessions := make([]*Session, 0, len(w.store.sessions))
	for _, sess := range w.store.sessions {
		sessions = append(sessions, sess)
	}
	w.store.mu.RUnlock()

	dropped := 0
	for _, sess := range sessions {
		unlock := w.lock(sess.UserID)
		kept := sess.Files[:0]
		for _, rec := range sess.Files {
			if _, err := os.Stat(rec.Path); err == nil {
				kept = append(kept, rec)
			} else {
				dropped++
			}
		}
		sess.Files = kept
		unlock()
	}
	return dropped
}
