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

// PredictionCache stores the latest prediction per market window so the
// signal layer can serve a stale result when the upstream provider is rate
// limited or slow.
type PredictionCache struct {
	rdb *redis.Client
}

// NewPredictionCache creates a PredictionCache backed by the given Client.
func NewPredictionCache(c *Client) *PredictionCache {
	return &PredictionCache{rdb: c.Underlying()}
}

func predictionKey(windowID string) string {
	return "prediction:" + windowID
}

// Set stores the prediction for a window with the given TTL.
func (pc *PredictionCache) Set(ctx context.Context, windowID string, p domain.Prediction, ttl time.Duration) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: marshal prediction %s: %w", windowID, err)
	}
	if err := pc.rdb.Set(ctx, predictionKey(windowID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set prediction %s: %w", windowID, err)
	}
	return nil
}

// Get retrieves the cached prediction for a window. It returns
// domain.ErrNotFound when no prediction is cached.
func (pc *PredictionCache) Get(ctx context.Context, windowID string) (domain.Prediction, error) {
	raw, err := pc.rdb.Get(ctx, predictionKey(windowID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Prediction{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("redis: get prediction %s: %w", windowID, err)
	}

	var p domain.Prediction
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Prediction{}, fmt.Errorf("redis: unmarshal prediction %s: %w", windowID, err)
	}
	return p, nil
}
