package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/extend/pkg/types"
)

// RecordRun implements types.RunRecorder. The record is written directly,
// independent of staged configuration writes.
func (s *Store) RecordRun(ctx context.Context, run types.RunRecord) error {
	if run.RunID == "" {
		return types.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}

	var target, errText *string
	if run.Target != "" {
		target = &run.Target
	}
	if run.Error != "" {
		errText = &run.Error
	}
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO regenerations (run_id, target, started_at, finished_at, status, entities, error)
VALUES (?, ?, ?, ?, ?, ?, ?)`),
		run.RunID, target,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Status, run.Entities, errText,
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", run.RunID, err)
	}
	return nil
}

// ListRuns implements types.RunRecorder. Runs are returned newest first;
// limit <= 0 returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]types.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}

	query := "SELECT run_id, target, started_at, finished_at, status, entities, error FROM regenerations ORDER BY started_at DESC, run_id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []types.RunRecord
	for rows.Next() {
		var (
			r                   types.RunRecord
			target, errText     sql.NullString
			startedAt, finished string
		)
		if err := rows.Scan(&r.RunID, &target, &startedAt, &finished, &r.Status, &r.Entities, &errText); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Target = target.String
		r.Error = errText.String
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parsing run started_at: %w", err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parsing run finished_at: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
