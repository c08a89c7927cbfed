package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RecordInstruction appends one instruction line to the journal.
func (p *PostgresClient) RecordInstruction(ctx context.Context, rec InstructionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO instruction_journal (id, session_id, code, line, response, status, error, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.SessionID, rec.Code, rec.Line, rec.Response, string(rec.Status), rec.Error,
		rec.Duration.Milliseconds(), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// ListInstructions returns the newest entries of a session, oldest first.
func (p *PostgresClient) ListInstructions(ctx context.Context, sessionID uuid.UUID, limit int) ([]InstructionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, session_id, code, line, response, status, error, duration_ms, created_at
		FROM (
			SELECT * FROM instruction_journal
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load journal: %w", err)
	}
	defer rows.Close()

	records := make([]InstructionRecord, 0)
	for rows.Next() {
		var rec InstructionRecord
		var status string
		var durationMS int64

		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Code, &rec.Line, &rec.Response,
			&status, &rec.Error, &durationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		rec.Status = InstructionStatus(status)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveSnapshot stores a serialized state and returns its id.
func (p *PostgresClient) SaveSnapshot(ctx context.Context, sessionID uuid.UUID, label string, state json.RawMessage) (uuid.UUID, error) {
	if !json.Valid(state) {
		return uuid.Nil, fmt.Errorf("snapshot state is not valid JSON")
	}

	id := uuid.New()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO state_snapshots (id, session_id, label, state)
		VALUES ($1, $2, $3, $4)
	`, id, sessionID, label, []byte(state))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return id, nil
}

func (p *PostgresClient) LoadSnapshot(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	var snap Snapshot
	var stateJSON []byte

	err := p.pool.QueryRow(ctx, `
		SELECT id, session_id, label, state, created_at
		FROM state_snapshots
		WHERE id = $1
	`, id).Scan(&snap.ID, &snap.SessionID, &snap.Label, &stateJSON, &snap.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, types.Errorf(types.KindLookup, "load snapshot", "snapshot not found: %s", id)
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	snap.State = json.RawMessage(stateJSON)
	return &snap, nil
}
