package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// StateStore implements domain.StateStore as a singleton JSONB record per
// engine key. The whole EngineState is serialized on every save; the engine
// writes after each transition, so the record is always the last durable
// transition.
type StateStore struct {
	pool *pgxpool.Pool
}

// NewStateStore creates a new StateStore backed by the given connection pool.
func NewStateStore(pool *pgxpool.Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Load reads the state record for key. Returns domain.ErrNotFound when no
// record exists yet.
func (s *StateStore) Load(ctx context.Context, key string) (*domain.EngineState, error) {
	const query = `SELECT state FROM engine_state WHERE key = $1`

	var raw []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load state %s: %w", key, err)
	}

	var state domain.EngineState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal state %s: %w", key, err)
	}
	return &state, nil
}

// Save upserts the full state record for key.
func (s *StateStore) Save(ctx context.Context, key string, state *domain.EngineState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("postgres: marshal state %s: %w", key, err)
	}

	const query = `
		INSERT INTO engine_state (key, state, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, key, raw); err != nil {
		return fmt.Errorf("postgres: save state %s: %w", key, err)
	}
	return nil
}
