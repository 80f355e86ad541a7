// Package history keeps an append-only journal of stylization runs in
// Postgres. It is optional: the bot works without a database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/stylebot/core/conversation"
	"github.com/m3rciful/stylebot/core/logger"
)

const (
	OutcomeOK   = "ok"
	OutcomeFail = "fail"

	writeTimeout = 3 * time.Second
)

// Run is one row of transform_runs.
type Run struct {
	ID         uuid.UUID `db:"run_id"`
	UserID     int64     `db:"user_id"`
	Technology string    `db:"technology"`
	StyleKey   string    `db:"style_key"`
	StyleLabel string    `db:"style_label"`
	Model      string    `db:"model"`
	Outcome    string    `db:"outcome"`
	Error      string    `db:"error"`
	Bytes      int       `db:"bytes"`
	DurationMS int64     `db:"duration_ms"`
	CreatedAt  time.Time `db:"created_at"`
}

// Totals aggregates the journal for the admin report.
type Totals struct {
	Runs   int64 `db:"runs"`
	Failed int64 `db:"failed"`
	Users  int64 `db:"users"`
}

// DB is the subset of *sqlx.DB the journal needs.
type DB interface {
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

const insertRun = `INSERT INTO transform_runs
	(run_id, user_id, technology, style_key, style_label, model, outcome, error, bytes, duration_ms, created_at)
VALUES
	(:run_id, :user_id, :technology, :style_key, :style_label, :model, :outcome, :error, :bytes, :duration_ms, :created_at)`

const selectTotals = `SELECT
	COUNT(*) AS runs,
	COUNT(*) FILTER (WHERE outcome = 'fail') AS failed,
	COUNT(DISTINCT user_id) AS users
FROM transform_runs`

// Journal writes runs to transform_runs.
type Journal struct {
	db  DB
	now func() time.Time
}

// NewJournal wraps db, typically an *sqlx.DB.
func NewJournal(db DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Record inserts run, assigning an id and timestamp when missing.
func (j *Journal) Record(ctx context.Context, run Run) (uuid.UUID, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = j.now().UTC()
	}
	if _, err := j.db.NamedExecContext(ctx, insertRun, run); err != nil {
		return uuid.Nil, fmt.Errorf("history: insert run: %w", err)
	}
	return run.ID, nil
}

// Totals returns aggregate counts over the whole journal.
func (j *Journal) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	if err := j.db.GetContext(ctx, &t, selectTotals); err != nil {
		return Totals{}, fmt.Errorf("history: totals: %w", err)
	}
	return t, nil
}

// ObserveDispatch records a finished dispatch. Write failures are logged
// and never reach the user.
func (j *Journal) ObserveDispatch(ctx context.Context, rec conversation.DispatchRecord) {
	run := Run{
		UserID:     rec.UserID,
		Technology: rec.Technology,
		StyleKey:   rec.StyleKey,
		StyleLabel: rec.StyleLabel,
		Model:      rec.Model,
		Outcome:    OutcomeOK,
		Bytes:      rec.Bytes,
		DurationMS: rec.Duration.Milliseconds(),
	}
	if rec.Err != nil {
		run.Outcome = OutcomeFail
		run.Error = logger.SanitizeLimit(rec.Err.Error(), 512)
	}

	// Outlives the update context, bounded by writeTimeout.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	id, err := j.Record(wctx, run)
	if err != nil {
		logger.Warn(ctx, logger.CompHistory, "run.record", slog.String("status", "fail"), logger.Err(err))
		return
	}
	logger.Debug(ctx, logger.CompHistory, "run.record",
		slog.String("status", "ok"),
		slog.String("run_id", id.String()),
		slog.String("outcome", run.Outcome),
	)
}
