// Package session tracks per-user uploaded files, scratch directories and
// the pending-confirmation state between a request and its confirmation.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"archivebot/bot/archive"
	"archivebot/core/logger"

	"log/slog"
)

var (
	// ErrLimitExceeded rejects an add that would exceed the per-user file cap.
	ErrLimitExceeded = errors.New("session: file limit exceeded")
	// ErrSizeExceeded rejects a file larger than the configured byte cap.
	ErrSizeExceeded = errors.New("session: file size exceeded")
)

// Record is one stored file. Records are immutable once created; the
// session references them in insertion order.
type Record struct {
	Name string
	Path string
	Size int64
}

// PendingKind tags the operation awaiting a yes/no confirmation.
type PendingKind int

const (
	PendingCreate PendingKind = iota + 1
	PendingExtractAll
)

// PendingOp is the staged operation; Format is meaningful only for
// PendingCreate. A nil *PendingOp on the session means nothing is staged.
type PendingOp struct {
	Kind   PendingKind
	Format archive.Format
}

// Session is the per-user state. Field access is not synchronized here;
// the orchestration layer serializes all mutations per user.
type Session struct {
	UserID     int64
	Files      []Record
	ScratchDir string
	Pending    *PendingOp
}

// Limits bound what a single user may store.
type Limits struct {
	MaxFiles    int
	MaxFileSize int64
}

// Store owns the user-to-session mapping and the shared scratch root.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	root     string
	limits   Limits
}

// NewStore creates the scratch root and an empty store.
func NewStore(root string, limits Limits) (*Store, error) {
	if root == "" {
		return nil, errors.New("session: empty temp root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("session: create temp root: %w", err)
	}
	return &Store{
		sessions: make(map[int64]*Session),
		root:     root,
		limits:   limits,
	}, nil
}

// Limits returns the configured per-user bounds.
func (s *Store) Limits() Limits { return s.limits }

// Root returns the shared scratch root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) scratchDir(userID int64) string {
	return filepath.Join(s.root, fmt.Sprintf("user_%d", userID))
}

// Ensure returns the session for userID, lazily creating it and its
// scratch directory on first interaction.
func (s *Store) Ensure(userID int64) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{UserID: userID, ScratchDir: s.scratchDir(userID)}
		s.sessions[userID] = sess
	}
	s.mu.Unlock()

	if err := os.MkdirAll(sess.ScratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create scratch dir: %w", err)
	}
	return sess, nil
}

// Init resets the session for userID, wiping in-memory state and any
// scratch directory contents. Idempotent.
func (s *Store) Init(userID int64) (*Session, error) {
	dir := s.scratchDir(userID)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("session: wipe scratch dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create scratch dir: %w", err)
	}

	sess := &Session{UserID: userID, ScratchDir: dir}
	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()

	logger.Session.Debug("session initialized",
		slog.String("event", "session.init"),
		slog.Int64("user_id", userID),
	)
	return sess, nil
}

// Clear removes the scratch directory recursively and reinitializes the
// session. Calling it on a fresh or missing session is not an error.
func (s *Store) Clear(userID int64) error {
	_, err := s.Init(userID)
	return err
}

// Get returns the session for userID without creating one.
func (s *Store) Get(userID int64) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// Append records a file, enforcing the per-user cap and byte cap.
func (s *Store) Append(sess *Session, rec Record) error {
	if len(sess.Files) >= s.limits.MaxFiles {
		return ErrLimitExceeded
	}
	if rec.Size > s.limits.MaxFileSize {
		return ErrSizeExceeded
	}
	sess.Files = append(sess.Files, rec)
	return nil
}

// MergeExtracted appends extracted records until the cap is reached and
// returns how many were merged. Hitting the cap stops early, it does not
// error.
func (s *Store) MergeExtracted(sess *Session, recs []Record) int {
	merged := 0
	for _, rec := range recs {
		if len(sess.Files) >= s.limits.MaxFiles {
			break
		}
		sess.Files = append(sess.Files, rec)
		merged++
	}
	return merged
}

// UniquePath resolves name to a collision-free location in the session's
// scratch dir, probing name, name_1, name_2, ... The in-memory file list
// is the source of truth; the filesystem is probed as a second guard
// against external writes to the scratch directory.
func (sess *Session) UniquePath(name string) (string, string) {
	base := filepath.Base(filepath.Clean(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "file"
	}

	stem := base
	ext := ""
	if i := strings.LastIndex(base, "."); i > 0 {
		stem, ext = base[:i], base[i:]
	}

	candidate := base
	for counter := 1; sess.nameTaken(candidate); counter++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, counter, ext)
	}
	return candidate, filepath.Join(sess.ScratchDir, candidate)
}

func (sess *Session) nameTaken(name string) bool {
	for _, rec := range sess.Files {
		if rec.Name == name {
			return true
		}
	}
	if _, err := os.Stat(filepath.Join(sess.ScratchDir, name)); err == nil {
		return true
	}
	return false
}

// Snapshot copies the file list for use outside the per-user lock.
func (sess *Session) Snapshot() []Record {
	out := make([]Record, len(sess.Files))
	copy(out, sess.Files)
	return out
}

// TotalSize sums the recorded file sizes.
func (sess *Session) TotalSize() int64 {
	var total int64
	for _, rec := range sess.Files {
		total += rec.Size
	}
	return total
}

// Extractable filters the file list down to archives the codec can open.
func (sess *Session) Extractable() []Record {
	var out []Record
	for _, rec := range sess.Files {
		if archive.CanExtract(rec.Name) {
			out = append(out, rec)
		}
	}
	return out
}

// SetPending stages an operation awaiting confirmation, replacing any
// previously staged one (last request wins).
func (sess *Session) SetPending(op PendingOp) {
	sess.Pending = &op
}

// ClearPending discards the staged operation, if any.
func (sess *Session) ClearPending() {
	sess.Pending = nil
}
