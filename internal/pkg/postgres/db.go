package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/airenas/supaquery/internal/pkg/persistence"
	"github.com/airenas/supaquery/internal/pkg/status"
	"github.com/airenas/supaquery/internal/pkg/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB provides operations with postgresql
type DB struct {
	pool *pgxpool.Pool
}

//NewDB creates DB instance
func NewDB(pool *pgxpool.Pool) (*DB, error) {
	if pool == nil {
		return nil, fmt.Errorf("no pool")
	}
	res := &DB{pool: pool}
	return res, nil
}

const refundFields = `id, name, amount::float8, image_url, audio_url, summary, status, processing_stage,
	processing_started, processing_completed, processing_time_seconds::float8, error_message, last_updated`

// PendingAudio returns records with audio but without summary
func (db *DB) PendingAudio(ctx context.Context) ([]*persistence.RefundRequest, error) {
	return db.selectRefunds(ctx, `SELECT `+refundFields+` FROM refund_requests
	WHERE audio_url IS NOT NULL AND audio_url <> '' AND summary IS NULL ORDER BY id`)
}

// Summarized returns records with summary
func (db *DB) Summarized(ctx context.Context) ([]*persistence.RefundRequest, error) {
	return db.selectRefunds(ctx, `SELECT `+refundFields+` FROM refund_requests
	WHERE summary IS NOT NULL ORDER BY id`)
}

func (db *DB) selectRefunds(ctx context.Context, sql string) ([]*persistence.RefundRequest, error) {
	rows, err := db.pool.Query(ctx, sql)
	if err != nil {
		return nil, utils.NewErrDatabase("can't select refund requests", err)
	}
	defer rows.Close()
	res := []*persistence.RefundRequest{}
	for rows.Next() {
		var r persistence.RefundRequest
		if err := rows.Scan(&r.ID, &r.Name, &r.Amount, &r.ImageURL, &r.AudioURL, &r.Summary, &r.Status, &r.Stage,
			&r.ProcessingStarted, &r.ProcessingCompleted, &r.ProcessingTimeSeconds, &r.ErrorMessage,
			&r.LastUpdated); err != nil {
			return nil, utils.NewErrDatabase("can't scan refund request", err)
		}
		res = append(res, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.NewErrDatabase("can't read refund requests", err)
	}
	return res, nil
}

// UpdateReceipt saves amount and image url, returns updated rows count
func (db *DB) UpdateReceipt(ctx context.Context, id int64, amount float64, imageURL string) (int64, error) {
	cmd, err := db.pool.Exec(ctx, `UPDATE refund_requests SET amount = $2, image_url = $3, last_updated = $4
	WHERE id = $1`, id, amount, imageURL, time.Now())
	if err != nil {
		return 0, wrapErr("can't update receipt", err)
	}
	return cmd.RowsAffected(), nil
}

// UpdateAmount saves amount only, returns updated rows count
func (db *DB) UpdateAmount(ctx context.Context, id int64, amount float64) (int64, error) {
	cmd, err := db.pool.Exec(ctx, `UPDATE refund_requests SET amount = $2, last_updated = $3
	WHERE id = $1`, id, amount, time.Now())
	if err != nil {
		return 0, wrapErr("can't update amount", err)
	}
	return cmd.RowsAffected(), nil
}

// UpdateAmountByImage saves amount for records with the image url, returns updated rows count
func (db *DB) UpdateAmountByImage(ctx context.Context, imageURL string, amount float64) (int64, error) {
	cmd, err := db.pool.Exec(ctx, `UPDATE refund_requests SET amount = $2, last_updated = $3
	WHERE image_url = $1`, imageURL, amount, time.Now())
	if err != nil {
		return 0, wrapErr("can't update amount", err)
	}
	return cmd.RowsAffected(), nil
}

// MarkStage marks record as processing in the stage
func (db *DB) MarkStage(ctx context.Context, id int64, stage status.Stage) error {
	now := time.Now()
	_, err := db.pool.Exec(ctx, `UPDATE refund_requests SET status = $2, processing_stage = $3,
	processing_started = COALESCE(processing_started, $4), error_message = NULL, last_updated = $4
	WHERE id = $1`, id, status.Processing.String(), stage.String(), now)
	if err != nil {
		return wrapErr("can't mark stage", err)
	}
	return nil
}

// SaveSummary saves summary once, a record with summary is never updated again
func (db *DB) SaveSummary(ctx context.Context, id int64, summary string, started time.Time) error {
	now := time.Now()
	cmd, err := db.pool.Exec(ctx, `UPDATE refund_requests SET summary = $2, status = $3, processing_stage = NULL,
	processing_completed = $4, processing_time_seconds = $5, error_message = NULL, last_updated = $4
	WHERE id = $1 AND summary IS NULL`, id, summary, status.Complete.String(), now, now.Sub(started).Seconds())
	if err != nil {
		return wrapErr("can't save summary", err)
	}
	if cmd.RowsAffected() != 1 {
		return utils.NewErrDatabase(fmt.Sprintf("no pending record %d", id), nil)
	}
	return nil
}

// MarkFailed saves failure message
func (db *DB) MarkFailed(ctx context.Context, id int64, msg string) error {
	now := time.Now()
	_, err := db.pool.Exec(ctx, `UPDATE refund_requests SET status = $2, error_message = $3,
	processing_completed = $4, last_updated = $4 WHERE id = $1`, id, status.Failed.String(), msg, now)
	if err != nil {
		return wrapErr("can't mark failed", err)
	}
	return nil
}

// InsertJob inserts job into DB
func (db *DB) InsertJob(ctx context.Context, job *persistence.Job) error {
	_, err := db.pool.Exec(ctx, `INSERT INTO jobs(id, query, intent, email, status, done, total, created, updated, version)
	VALUES($1, $2, $3, $4, $5, 0, 0, $6, $6, 1)`, job.ID, job.Query, job.Intent, job.Email, job.Status, job.Created)
	if err != nil {
		return fmt.Errorf("can't insert job: %w", err)
	}
	return nil
}

// LoadJob loads job from DB, returns nil if not found
func (db *DB) LoadJob(ctx context.Context, id string) (*persistence.Job, error) {
	var res persistence.Job
	err := db.pool.QueryRow(ctx, `SELECT id, query, intent, email, status, done, total, result, error,
	created, updated, version FROM jobs WHERE id = $1`, id).Scan(&res.ID, &res.Query, &res.Intent, &res.Email,
		&res.Status, &res.Done, &res.Total, &res.Result, &res.Error, &res.Created, &res.Updated, &res.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't load job: %w", err)
	}
	return &res, nil
}

// UpdateJob updates job, fails if the record was changed by someone else
func (db *DB) UpdateJob(ctx context.Context, job *persistence.Job) error {
	cmd, err := db.pool.Exec(ctx, `UPDATE jobs SET
	intent = $3,
	status = $4,
	done = $5,
	total = $6,
	result = $7,
	error = $8,
	updated = $9,
	version = $2 + 1
	WHERE id = $1 and version = $2`, job.ID, job.Version, job.Intent, job.Status, job.Done, job.Total,
		job.Result, job.Error, time.Now())
	if err != nil {
		return fmt.Errorf("can't update job: %w", err)
	}
	if cmd.RowsAffected() != 1 {
		return fmt.Errorf("can't update job, no records found")
	}
	job.Version++
	return nil
}

// LockEmailTable marks the email as being sent, fails if it is sent or being sent already
func (db *DB) LockEmailTable(ctx context.Context, id, msgType string) error {
	if _, err := db.pool.Exec(ctx, `INSERT INTO email_lock(id, type, value) VALUES($1, $2, 0)
	ON CONFLICT (id, type) DO NOTHING`, id, msgType); err != nil {
		return fmt.Errorf("can't insert email lock: %w", err)
	}
	cmd, err := db.pool.Exec(ctx, `UPDATE email_lock SET value = 1 WHERE id = $1 AND type = $2 AND value = 0`,
		id, msgType)
	if err != nil {
		return fmt.Errorf("can't lock email: %w", err)
	}
	if cmd.RowsAffected() != 1 {
		return fmt.Errorf("email %s(%s) is already locked", id, msgType)
	}
	return nil
}

// UnLockEmailTable sets final lock value, 0 - allows to retry, 2 - email sent
func (db *DB) UnLockEmailTable(ctx context.Context, id, msgType string, value *int) error {
	if _, err := db.pool.Exec(ctx, `UPDATE email_lock SET value = $3 WHERE id = $1 AND type = $2`,
		id, msgType, *value); err != nil {
		return fmt.Errorf("can't unlock email: %w", err)
	}
	return nil
}

// Live returns no error if db is reachable and initialized
func (db *DB) Live(ctx context.Context) error {
	var exists bool
	if err := db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT FROM pg_tables WHERE tablename = 'gue_jobs')`).Scan(&exists); err != nil {
		return fmt.Errorf("can't check table: %w", err)
	}
	if !exists {
		return fmt.Errorf("no migration done")
	}
	return nil
}

// IsUniqueViolation reports postgres unique constraint error
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func wrapErr(msg string, err error) error {
	return utils.NewErrDatabase(msg, err)
}
