package store

import (
	"context"
	"fmt"
)

// Run identifies one recorded engine run.
type Run struct {
	ID        string
	Name      string
	FrameRate float64
	GraphHash string // fingerprint of the graph document that was run
}

// WriteRun inserts a run record. Uses ON CONFLICT(id) DO NOTHING for
// idempotency: writing the same run twice is not an error.
func (s *Store) WriteRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, name, frame_rate, graph_hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, r.ID, r.Name, r.FrameRate, r.GraphHash)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteEvaluation appends an evaluation to a run. The run must exist
// (foreign key constraint); seq must be unique within the run.
func (s *Store) WriteEvaluation(ctx context.Context, runID string, ev Evaluation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluations
		(run_id, seq, frame, time, node_id, kind, outputs, run_again)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		ev.Seq,
		ev.Frame,
		ev.Time,
		ev.NodeID,
		ev.Kind,
		ev.Outputs,
		ev.RunAgain,
	)
	if err != nil {
		return fmt.Errorf("write evaluation %d: %w", ev.Seq, err)
	}
	return nil
}

// WriteSkip appends a skip to a run.
func (s *Store) WriteSkip(ctx context.Context, runID string, sk Skip) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO skips (run_id, frame, node_id, code, detail)
		VALUES (?, ?, ?, ?, ?)
	`, runID, sk.Frame, sk.NodeID, sk.Code, sk.Detail)
	if err != nil {
		return fmt.Errorf("write skip: %w", err)
	}
	return nil
}

// RunSink records one run's trace into a Store. It satisfies the
// engine's trace sink interface.
type RunSink struct {
	ctx   context.Context
	store *Store
	run   Run
}

// NewRunSink writes the run record and returns a sink appending to it.
func NewRunSink(ctx context.Context, s *Store, r Run) (*RunSink, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("run id is empty")
	}
	if err := s.WriteRun(ctx, r); err != nil {
		return nil, err
	}
	return &RunSink{ctx: ctx, store: s, run: r}, nil
}

// Run returns the run being recorded.
func (k *RunSink) Run() Run { return k.run }

// RecordEvaluation appends an evaluation.
func (k *RunSink) RecordEvaluation(ev Evaluation) error {
	return k.store.WriteEvaluation(k.ctx, k.run.ID, ev)
}

// RecordSkip appends a skip.
func (k *RunSink) RecordSkip(sk Skip) error {
	return k.store.WriteSkip(k.ctx, k.run.ID, sk)
}
