// Package stats persists an audit trail of archive operations and serves
// aggregate totals for the admin stats command. It is optional; without a
// database the bot runs with auditing disabled.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"archivebot/bot/service"
	"archivebot/core/logger"
)

// Repository writes operation records to Postgres.
type Repository struct {
	db *sqlx.DB
}

// NewRepository binds a repository to an open connection.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// RecordOperation inserts one audit row. Failures are logged, not
// propagated; auditing must never fail a user-facing operation.
func (r *Repository) RecordOperation(ctx context.Context, op service.Operation) {
	query := `
		INSERT INTO archive_operations (user_id, kind, format, files, bytes, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	format := nullIfEmpty(op.Format)
	_, err := r.db.ExecContext(ctx, query,
		op.UserID, op.Kind, format, op.Files, op.Bytes, op.Success, time.Now().UTC())
	if err != nil {
		logger.Stats.Error("failed to record operation",
			slog.String("event", "stats.record"),
			slog.Int64("user_id", op.UserID),
			slog.String("op", op.Kind),
			slog.String("err", err.Error()),
		)
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Totals aggregates the audit trail for the stats command.
type Totals struct {
	Operations int   `db:"operations"`
	Creates    int   `db:"creates"`
	Extracts   int   `db:"extracts"`
	Failures   int   `db:"failures"`
	Users      int   `db:"users"`
	Files      int   `db:"files"`
	Bytes      int64 `db:"bytes"`
}

// Totals returns lifetime aggregates across all users.
func (r *Repository) Totals(ctx context.Context) (Totals, error) {
	query := `
		SELECT
			COUNT(*)                                            AS operations,
			COUNT(*) FILTER (WHERE kind = 'create')             AS creates,
			COUNT(*) FILTER (WHERE kind = 'extract')            AS extracts,
			COUNT(*) FILTER (WHERE NOT success)                 AS failures,
			COUNT(DISTINCT user_id)                             AS users,
			COALESCE(SUM(files), 0)                             AS files,
			COALESCE(SUM(bytes), 0)                             AS bytes
		FROM archive_operations
	`
	var t Totals
	if err := r.db.GetContext(ctx, &t, query); err != nil {
		return Totals{}, fmt.Errorf("stats totals: %w", err)
	}
	return t, nil
}
