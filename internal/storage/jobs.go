package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// EnqueueJob adds a pending job. Jobs run at most once.
func (s *Store) EnqueueJob(job Job) error {
	return insertJob(s.db, job)
}

func insertJob(db execer, job Job) error {
	now := time.Now().UTC()
	runAfter := now
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter.UTC()
	}

	_, err := db.Exec(`
		INSERT INTO jobs (id, type, payload_json, status, attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
		job.ID, job.Type, job.PayloadJSON, JobPending,
		runAfter.Format(time.RFC3339), now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	return err
}

// ClaimNextJob marks the oldest due pending job of one of types as running
// and returns it. It returns nil when nothing is due.
func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	args := []any{JobRunning, now, JobPending, now}
	for _, t := range types {
		args = append(args, t)
	}

	row := s.db.QueryRow(`
		UPDATE jobs SET status = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = ? AND run_after <= ? AND type IN (?`+strings.Repeat(",?", len(types)-1)+`)
			ORDER BY run_after ASC, created_at ASC
			LIMIT 1
		)
		RETURNING id, type, payload_json, status, attempts, run_after, created_at, updated_at, last_error`,
		args...,
	)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming next job: %w", err)
	}
	return &j, nil
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var runAfter, createdAt, updatedAt string
	var lastError sql.NullString
	if err := row.Scan(
		&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts,
		&runAfter, &createdAt, &updatedAt, &lastError,
	); err != nil {
		return Job{}, err
	}
	j.LastError = lastError.String

	for _, f := range []struct {
		name string
		raw  string
		dst  *time.Time
	}{
		{"run_after", runAfter, &j.RunAfter},
		{"created_at", createdAt, &j.CreatedAt},
		{"updated_at", updatedAt, &j.UpdatedAt},
	} {
		t, err := time.Parse(time.RFC3339, f.raw)
		if err != nil {
			return Job{}, fmt.Errorf("parsing %s for job %s: %w", f.name, j.ID, err)
		}
		*f.dst = t
	}
	return j, nil
}

// CompleteJob marks a job completed.
func (s *Store) CompleteJob(id string) error {
	res, err := s.db.Exec(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		JobCompleted, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// FailJob marks a job failed and records the error. Failed jobs are never
// picked up again.
func (s *Store) FailJob(id string, errMsg string) error {
	res, err := s.db.Exec(
		`UPDATE jobs SET status = ?, attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`,
		JobFailed, errMsg, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
