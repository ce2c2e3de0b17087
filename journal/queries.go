package journal

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateScope records a new scope. Idempotent via ON CONFLICT so replayed
// events are harmless.
func (s *Store) CreateScope(ctx context.Context, id, name, policy string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scopes (id, name, policy)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			policy = excluded.policy
	`, id, name, policy)
	if err != nil {
		return fmt.Errorf("failed to insert scope: %w", err)
	}
	return nil
}

// FinishScope records a scope's final outcome.
func (s *Store) FinishScope(ctx context.Context, id, outcome, errText string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scopes SET outcome = ?, error = ?, finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, outcome, errText, id)
	if err != nil {
		return fmt.Errorf("failed to finish scope: %w", err)
	}
	return nil
}

// CreateTask records a newly spawned task in its initial state.
func (s *Store) CreateTask(ctx context.Context, id, scopeID, parentID, name string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Check the scope exists (enforces foreign key)
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM scopes WHERE id = ?`, scopeID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("foreign key constraint failed: scope %s does not exist", scopeID)
	}
	if err != nil {
		return fmt.Errorf("failed to check scope existence: %w", err)
	}

	parent := sql.NullString{String: parentID, Valid: parentID != ""}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (id, scope_id, parent_id, name, state)
		VALUES (?, ?, ?, ?, 'starting')
		ON CONFLICT(id) DO NOTHING
	`, id, scopeID, parent, name); err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RecordTransition appends one state change and moves the task's current
// state forward.
func (s *Store) RecordTransition(ctx context.Context, taskID, from, to, reason string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transitions (task_id, from_state, to_state, reason)
		VALUES (?, ?, ?, ?)
	`, taskID, from, to, reason); err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE tasks SET state = ? WHERE id = ?
	`, to, taskID); err != nil {
		return fmt.Errorf("failed to update task state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FinishTask records a task's terminal state and failure cause, if any.
func (s *Store) FinishTask(ctx context.Context, id, state, errText string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET state = ?, error = ? WHERE id = ?
	`, state, errText, id)
	if err != nil {
		return fmt.Errorf("failed to finish task: %w", err)
	}
	return nil
}

// GetScope returns one scope record.
func (s *Store) GetScope(ctx context.Context, id string) (*ScopeRecord, error) {
	var rec ScopeRecord
	var outcome, errText sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, policy, outcome, error, created_at
		FROM scopes WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Name, &rec.Policy, &outcome, &errText, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get scope %s: %w", id, err)
	}
	rec.Outcome = outcome.String
	rec.Error = errText.String
	return &rec, nil
}

// ScopeTasks returns every task recorded for a scope, oldest first.
func (s *Store) ScopeTasks(ctx context.Context, scopeID string) ([]TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope_id, parent_id, name, state, error, created_at
		FROM tasks WHERE scope_id = ?
		ORDER BY rowid
	`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		var parent, name, errText sql.NullString
		if err := rows.Scan(&rec.ID, &rec.ScopeID, &parent, &name, &rec.State, &errText, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		rec.ParentID = parent.String
		rec.Name = name.String
		rec.Error = errText.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// TaskHistory returns a task's transitions in the order they happened.
func (s *Store) TaskHistory(ctx context.Context, taskID string) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, from_state, to_state, reason, recorded_at
		FROM transitions WHERE task_id = ?
		ORDER BY id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var tr Transition
		var reason sql.NullString
		if err := rows.Scan(&tr.TaskID, &tr.From, &tr.To, &reason, &tr.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		tr.Reason = reason.String
		out = append(out, tr)
	}
	return out, rows.Err()
}
