package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/jackc/pgx/v5/pgxpool"
)

// JobCleaner deletes job records
type JobCleaner struct {
	pool   *pgxpool.Pool
	tables []string
}

// NewJobCleaner creates cleaner for job tables
func NewJobCleaner(pool *pgxpool.Pool) (*JobCleaner, error) {
	if pool == nil {
		return nil, fmt.Errorf("no pool")
	}
	return &JobCleaner{pool: pool, tables: []string{"email_lock", "jobs"}}, nil
}

// Clean deletes all records of the job ID
func (c *JobCleaner) Clean(ctx context.Context, id string) error {
	for _, t := range c.tables {
		cmd, err := c.pool.Exec(ctx, `DELETE FROM `+ident(t)+` WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("can't delete %s(%s): %w", id, t, err)
		}
		goapp.Log.Info().Str("ID", id).Str("table", t).Int64("rows", cmd.RowsAffected()).Msg("deleted")
	}
	return nil
}

// ExpiredJobs provides IDs of old jobs
type ExpiredJobs struct {
	pool         *pgxpool.Pool
	expiresAfter time.Duration
}

// NewExpiredJobs creates provider, jobs older than expiresAfter are expired
func NewExpiredJobs(pool *pgxpool.Pool, expiresAfter time.Duration) (*ExpiredJobs, error) {
	if pool == nil {
		return nil, fmt.Errorf("no pool")
	}
	if expiresAfter <= 0 {
		return nil, fmt.Errorf("wrong expire duration %v", expiresAfter)
	}
	return &ExpiredJobs{pool: pool, expiresAfter: expiresAfter}, nil
}

// GetExpired returns IDs of expired jobs
func (e *ExpiredJobs) GetExpired(ctx context.Context) ([]string, error) {
	exp := time.Now().Add(-e.expiresAfter)
	goapp.Log.Info().Time("older than", exp).Msg("selecting old jobs...")
	rows, err := e.pool.Query(ctx, `SELECT id FROM jobs WHERE created < $1`, exp)
	if err != nil {
		return nil, fmt.Errorf("can't select IDs: %w", err)
	}
	defer rows.Close()

	res := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("can't retrieve IDs: %w", err)
		}
		res = append(res, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("can't retrieve IDs: %w", err)
	}
	return res, nil
}
