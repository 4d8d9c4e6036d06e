package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned when a run id has no record.
var ErrRunNotFound = errors.New("run not found")

// ReadRun returns a run record.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, frame_rate, graph_hash FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Name, &r.FrameRate, &r.GraphHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns every run ordered by id. Returns an empty slice, not
// nil, when there are none.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, frame_rate, graph_hash FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Name, &r.FrameRate, &r.GraphHash); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvaluations returns a run's evaluations ordered by seq.
func (s *Store) ReadEvaluations(ctx context.Context, runID string) ([]Evaluation, error) {
	return s.queryEvaluations(ctx, `
		SELECT seq, frame, time, node_id, kind, outputs, run_again
		FROM evaluations
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
}

// ReadNodeHistory returns one node's evaluations in a run ordered by seq.
func (s *Store) ReadNodeHistory(ctx context.Context, runID, nodeID string) ([]Evaluation, error) {
	return s.queryEvaluations(ctx, `
		SELECT seq, frame, time, node_id, kind, outputs, run_again
		FROM evaluations
		WHERE run_id = ? AND node_id = ?
		ORDER BY seq ASC
	`, runID, nodeID)
}

func (s *Store) queryEvaluations(ctx context.Context, query string, args ...any) ([]Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	evs := []Evaluation{}
	for rows.Next() {
		var ev Evaluation
		if err := rows.Scan(&ev.Seq, &ev.Frame, &ev.Time, &ev.NodeID, &ev.Kind, &ev.Outputs, &ev.RunAgain); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		evs = append(evs, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return evs, nil
}

// ReadSkips returns a run's skips in the order they were recorded.
func (s *Store) ReadSkips(ctx context.Context, runID string) ([]Skip, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame, node_id, code, detail
		FROM skips
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query skips: %w", err)
	}
	defer rows.Close()

	skips := []Skip{}
	for rows.Next() {
		var sk Skip
		if err := rows.Scan(&sk.Frame, &sk.NodeID, &sk.Code, &sk.Detail); err != nil {
			return nil, fmt.Errorf("scan skip: %w", err)
		}
		skips = append(skips, sk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate skips: %w", err)
	}
	return skips, nil
}

// ReadTrace loads a whole run into memory.
func (s *Store) ReadTrace(ctx context.Context, runID string) (*Trace, error) {
	if _, err := s.ReadRun(ctx, runID); err != nil {
		return nil, err
	}
	evs, err := s.ReadEvaluations(ctx, runID)
	if err != nil {
		return nil, err
	}
	skips, err := s.ReadSkips(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &Trace{evaluations: evs, skips: skips}, nil
}
