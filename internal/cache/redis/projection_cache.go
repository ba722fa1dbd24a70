package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// projectionTTL bounds how long a stale projection can be served after the
// tick loop stops refreshing it.
const projectionTTL = 5 * time.Minute

// ProjectionCache stores the latest state projection per engine variant so
// API reads do not have to touch the engine. The tick loop refreshes it after
// every tick.
type ProjectionCache struct {
	rdb *redis.Client
}

// NewProjectionCache creates a ProjectionCache backed by the given Client.
func NewProjectionCache(c *Client) *ProjectionCache {
	return &ProjectionCache{rdb: c.Underlying()}
}

func projectionKey(mode domain.Mode) string {
	return "projection:" + string(mode)
}

// Set stores the latest projection for mode.
func (pc *ProjectionCache) Set(ctx context.Context, mode domain.Mode, p *domain.StateProjection) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: marshal projection %s: %w", mode, err)
	}
	if err := pc.rdb.Set(ctx, projectionKey(mode), raw, projectionTTL).Err(); err != nil {
		return fmt.Errorf("redis: set projection %s: %w", mode, err)
	}
	return nil
}

// Get retrieves the latest projection for mode. It returns domain.ErrNotFound
// when no projection has been cached or the entry has expired.
func (pc *ProjectionCache) Get(ctx context.Context, mode domain.Mode) (*domain.StateProjection, error) {
	raw, err := pc.rdb.Get(ctx, projectionKey(mode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get projection %s: %w", mode, err)
	}

	var p domain.StateProjection
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("redis: unmarshal projection %s: %w", mode, err)
	}
	return &p, nil
}
