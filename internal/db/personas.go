package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// GetEnabledPersona returns the enabled persona for an agent role. Returns an
// error when no enabled persona exists: the pipeline cannot run without one.
func (db *DB) GetEnabledPersona(ctx context.Context, t types.AgentType) (*types.Persona, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, agent_type, model, temperature, max_tokens, system_instructions,
		 enabled, created_at, updated_at
		 FROM personas WHERE agent_type = $1 AND enabled = TRUE
		 ORDER BY updated_at DESC LIMIT 1`,
		t,
	)
	var p types.Persona
	err := row.Scan(&p.ID, &p.AgentType, &p.Model, &p.Temperature, &p.MaxTokens,
		&p.SystemInstructions, &p.Enabled, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no enabled persona for agent %s", t)
		}
		return nil, fmt.Errorf("failed to get persona: %w", err)
	}
	return &p, nil
}

// ListPersonas returns all personas ordered by agent role
func (db *DB) ListPersonas(ctx context.Context) ([]*types.Persona, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, agent_type, model, temperature, max_tokens, system_instructions,
		 enabled, created_at, updated_at
		 FROM personas ORDER BY agent_type ASC, updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	defer rows.Close()

	var personas []*types.Persona
	for rows.Next() {
		var p types.Persona
		err := rows.Scan(&p.ID, &p.AgentType, &p.Model, &p.Temperature, &p.MaxTokens,
			&p.SystemInstructions, &p.Enabled, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan persona: %w", err)
		}
		personas = append(personas, &p)
	}
	return personas, rows.Err()
}
