// Package service orchestrates the upload-compile-extract workflow on top
// of the session store and the archive codecs. All operations for one
// user are serialized by a per-user mutex.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"archivebot/bot/archive"
	"archivebot/bot/session"
	"archivebot/core/logger"
)

// Status classifies an operation outcome for the presentation layer.
type Status int

const (
	OK Status = iota
	LimitExceeded
	SizeExceeded
	EmptySelection
	NothingPending
	Failed
)

// Recorder receives an audit record per completed operation. A nil
// Recorder disables auditing.
type Recorder interface {
	RecordOperation(ctx context.Context, op Operation)
}

// Operation is the audit record handed to the Recorder.
type Operation struct {
	UserID  int64
	Kind    string
	Format  string
	Files   int
	Bytes   int64
	Success bool
}

// Service is the workflow orchestrator.
type Service struct {
	store    *session.Store
	recorder Recorder

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New builds a Service; recorder may be nil.
func New(store *session.Store, recorder Recorder) *Service {
	return &Service{
		store:    store,
		recorder: recorder,
		locks:    make(map[int64]*sync.Mutex),
	}
}

// Limits exposes the store's per-user bounds for presentation.
func (s *Service) Limits() session.Limits { return s.store.Limits() }

func (s *Service) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lk, ok := s.locks[userID]
	if !ok {
		lk = &sync.Mutex{}
		s.locks[userID] = lk
	}
	return lk
}

// Lock acquires the per-user mutex and returns its release func. Exposed
// so the scratch sweeper serializes with in-flight operations.
func (s *Service) Lock(userID int64) (unlock func()) {
	lk := s.userLock(userID)
	lk.Lock()
	return lk.Unlock
}

func (s *Service) record(ctx context.Context, op Operation) {
	if s.recorder != nil {
		s.recorder.RecordOperation(ctx, op)
	}
}

// AddOutcome reports the result of storing one uploaded file.
type AddOutcome struct {
	Status      Status
	File        session.Record
	Count       int
	Limit       int
	IsArchive   bool
	Extractable bool
}

// ReceiveFile stores one uploaded file in the user's session. The declared
// size is checked before the body is read; the stored record carries the
// actual on-disk size, which is re-checked against the cap.
func (s *Service) ReceiveFile(ctx context.Context, userID int64, name string, declaredSize int64, body io.Reader) (AddOutcome, error) {
	unlock := s.Lock(userID)
	defer unlock()

	limits := s.store.Limits()
	sess, err := s.store.Ensure(userID)
	if err != nil {
		return AddOutcome{Status: Failed}, err
	}
	if len(sess.Files) >= limits.MaxFiles {
		return AddOutcome{Status: LimitExceeded, Count: len(sess.Files), Limit: limits.MaxFiles}, nil
	}
	if declaredSize > limits.MaxFileSize {
		return AddOutcome{Status: SizeExceeded, Limit: limits.MaxFiles}, nil
	}

	storedName, path := sess.UniquePath(name)
	size, err := writeBody(path, body, limits.MaxFileSize)
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, errBodyTooLarge) {
			return AddOutcome{Status: SizeExceeded, Limit: limits.MaxFiles}, nil
		}
		return AddOutcome{Status: Failed}, fmt.Errorf("store upload: %w", err)
	}

	rec := session.Record{Name: storedName, Path: path, Size: size}
	if err := s.store.Append(sess, rec); err != nil {
		_ = os.Remove(path)
		switch {
		case errors.Is(err, session.ErrLimitExceeded):
			return AddOutcome{Status: LimitExceeded, Count: len(sess.Files), Limit: limits.MaxFiles}, nil
		case errors.Is(err, session.ErrSizeExceeded):
			return AddOutcome{Status: SizeExceeded, Limit: limits.MaxFiles}, nil
		default:
			return AddOutcome{Status: Failed}, err
		}
	}

	logger.Svc.Info("file stored",
		slog.String("event", "file.stored"),
		slog.Int64("user_id", userID),
		slog.String("file", storedName),
		slog.Int64("bytes", size),
		slog.Int("files", len(sess.Files)),
	)
	return AddOutcome{
		Status:      OK,
		File:        rec,
		Count:       len(sess.Files),
		Limit:       limits.MaxFiles,
		IsArchive:   archive.IsArchive(storedName),
		Extractable: archive.CanExtract(storedName),
	}, nil
}

var errBodyTooLarge = errors.New("body exceeds size cap")

func writeBody(path string, body io.Reader, maxSize int64) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	// One extra byte distinguishes exactly-at-cap from over-cap.
	n, err := io.Copy(f, io.LimitReader(body, maxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if n > maxSize {
		return n, errBodyTooLarge
	}
	return n, nil
}

// SessionView is a read-only snapshot for the handlers.
type SessionView struct {
	Files       []session.Record
	Extractable []session.Record
	TotalSize   int64
	Pending     *session.PendingOp
}

// View snapshots the user's session.
func (s *Service) View(userID int64) SessionView {
	unlock := s.Lock(userID)
	defer unlock()

	sess, ok := s.store.Get(userID)
	if !ok {
		return SessionView{}
	}
	pending := sess.Pending
	if pending != nil {
		cp := *pending
		pending = &cp
	}
	return SessionView{
		Files:       sess.Snapshot(),
		Extractable: sess.Extractable(),
		TotalSize:   sess.TotalSize(),
		Pending:     pending,
	}
}

// RequestCreate stages archive creation in the given format, replacing any
// previously staged operation.
func (s *Service) RequestCreate(userID int64, format archive.Format) (count int, status Status) {
	unlock := s.Lock(userID)
	defer unlock()

	sess, ok := s.store.Get(userID)
	if !ok || len(sess.Files) == 0 {
		return 0, EmptySelection
	}
	sess.SetPending(session.PendingOp{Kind: session.PendingCreate, Format: format})
	return len(sess.Files), OK
}

// CreateResult reports a finished compilation.
type CreateResult struct {
	Status      Status
	ArchivePath string
	ArchiveName string
	Files       int
	Bytes       int64
	Format      archive.Format
}

// ConfirmCreate compiles the session files into an archive in the staged
// format. The staged operation survives a failed attempt so the user can
// retry; it is cleared only on success. Source files stay in the session.
func (s *Service) ConfirmCreate(ctx context.Context, userID int64, format archive.Format) (CreateResult, error) {
	unlock := s.Lock(userID)
	defer unlock()

	sess, ok := s.store.Get(userID)
	if !ok {
		return CreateResult{Status: NothingPending}, nil
	}
	pending := sess.Pending
	if pending == nil || pending.Kind != session.PendingCreate || pending.Format != format {
		return CreateResult{Status: NothingPending}, nil
	}
	if len(sess.Files) == 0 {
		sess.ClearPending()
		return CreateResult{Status: EmptySelection}, nil
	}

	members := make([]archive.Member, 0, len(sess.Files))
	for _, rec := range sess.Files {
		members = append(members, archive.Member{Name: rec.Name, Path: rec.Path})
	}
	name := fmt.Sprintf("compiled_files_%d_%dfiles%s", userID, len(members), format.Ext())
	outPath := filepath.Join(sess.ScratchDir, name)

	if err := archive.Compile(ctx, members, outPath, format); err != nil {
		s.record(ctx, Operation{UserID: userID, Kind: "create", Format: format.String(), Files: len(members)})
		logger.Svc.Error("archive compilation failed",
			slog.String("event", "archive.create.failed"),
			slog.Int64("user_id", userID),
			slog.String("format", format.String()),
			slog.Any("error", err),
		)
		return CreateResult{Status: Failed, Format: format}, err
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return CreateResult{Status: Failed, Format: format}, fmt.Errorf("stat archive: %w", err)
	}
	sess.ClearPending()

	s.record(ctx, Operation{
		UserID: userID, Kind: "create", Format: format.String(),
		Files: len(members), Bytes: info.Size(), Success: true,
	})
	logger.Svc.Info("archive compiled",
		slog.String("event", "archive.create"),
		slog.Int64("user_id", userID),
		slog.String("format", format.String()),
		slog.Int("files", len(members)),
		slog.Int64("bytes", info.Size()),
	)
	return CreateResult{
		Status:      OK,
		ArchivePath: outPath,
		ArchiveName: name,
		Files:       len(members),
		Bytes:       info.Size(),
		Format:      format,
	}, nil
}

// Delivered removes a compiled archive once it has been sent to the user.
func (s *Service) Delivered(userID int64, archivePath string) {
	unlock := s.Lock(userID)
	defer unlock()

	if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Svc.Warn("failed to remove delivered archive",
			slog.Int64("user_id", userID),
			slog.String("file", archivePath),
			slog.Any("error", err),
		)
	}
}

// RequestExtract stages extraction of every extractable archive in the
// session.
func (s *Service) RequestExtract(userID int64) (archives int, status Status) {
	unlock := s.Lock(userID)
	defer unlock()

	sess, ok := s.store.Get(userID)
	if !ok {
		return 0, EmptySelection
	}
	extractable := sess.Extractable()
	if len(extractable) == 0 {
		return 0, EmptySelection
	}
	sess.SetPending(session.PendingOp{Kind: session.PendingExtractAll})
	return len(extractable), OK
}

// ExtractResult reports a finished extraction pass.
type ExtractResult struct {
	Status   Status
	Archives int
	Failed   []string
	Merged   int
	Capped   bool
}

// ConfirmExtract extracts every staged archive into its own subdirectory
// and merges the extracted files into the session up to the file cap.
// A corrupt archive is reported and skipped; the pass continues.
func (s *Service) ConfirmExtract(ctx context.Context, userID int64) (ExtractResult, error) {
	unlock := s.Lock(userID)
	defer unlock()

	sess, ok := s.store.Get(userID)
	if !ok {
		return ExtractResult{Status: NothingPending}, nil
	}
	if sess.Pending == nil || sess.Pending.Kind != session.PendingExtractAll {
		return ExtractResult{Status: NothingPending}, nil
	}
	archives := sess.Extractable()
	if len(archives) == 0 {
		sess.ClearPending()
		return ExtractResult{Status: EmptySelection}, nil
	}

	res := ExtractResult{Status: OK, Archives: len(archives)}
	for _, arc := range archives {
		if len(sess.Files) >= s.store.Limits().MaxFiles {
			res.Capped = true
			break
		}
		dir := filepath.Join(sess.ScratchDir, "extracted_"+stem(arc.Name))
		extracted, err := archive.Extract(ctx, arc.Path, dir)
		if err != nil {
			res.Failed = append(res.Failed, arc.Name)
			logger.Svc.Warn("archive extraction failed",
				slog.String("event", "archive.extract.failed"),
				slog.Int64("user_id", userID),
				slog.String("file", arc.Name),
				slog.Any("error", err),
			)
			continue
		}

		for _, x := range extracted {
			// Resolve the name against files already in the session,
			// including ones merged earlier in this pass.
			name, _ := sess.UniquePath(filepath.Base(x.Name))
			rec := session.Record{Name: name, Path: x.Path, Size: x.Size}
			if s.store.MergeExtracted(sess, []session.Record{rec}) == 0 {
				res.Capped = true
				break
			}
			res.Merged++
		}
	}
	sess.ClearPending()

	s.record(ctx, Operation{
		UserID: userID, Kind: "extract",
		Files: res.Merged, Success: len(res.Failed) == 0,
	})
	logger.Svc.Info("extraction pass completed",
		slog.String("event", "archive.extract"),
		slog.Int64("user_id", userID),
		slog.Int("archives", len(archives)),
		slog.Int("merged", res.Merged),
		slog.Int("failed", len(res.Failed)),
	)
	return res, nil
}

func stem(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".tar.gz", ".tgz", ".zip", ".7z", ".tar", ".apk"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}

// Cancel discards any staged operation. Reports whether one was staged.
func (s *Service) Cancel(userID int64) bool {
	unlock := s.Lock(userID)
	defer unlock()

	sess, ok := s.store.Get(userID)
	if !ok || sess.Pending == nil {
		return false
	}
	sess.ClearPending()
	return true
}

// ClearFiles wipes the user's session and scratch directory.
func (s *Service) ClearFiles(userID int64) (removed int, err error) {
	unlock := s.Lock(userID)
	defer unlock()

	if sess, ok := s.store.Get(userID); ok {
		removed = len(sess.Files)
	}
	if err := s.store.Clear(userID); err != nil {
		return 0, err
	}
	logger.Svc.Info("session cleared",
		slog.String("event", "session.clear"),
		slog.Int64("user_id", userID),
		slog.Int("removed", removed),
	)
	return removed, nil
}

// Start initializes a fresh session for the user.
func (s *Service) Start(userID int64) error {
	unlock := s.Lock(userID)
	defer unlock()

	_, err := s.store.Init(userID)
	return err
}
