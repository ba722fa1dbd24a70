package domain

import "time"

// Direction is a predicted trade direction. Unlike Side it admits an unknown
// value for ticks where the signal source declines to call a direction.
type Direction string

const (
	DirectionLong    Direction = "long"
	DirectionShort   Direction = "short"
	DirectionUnknown Direction = "unknown"
)

// Stance is the directional reading of a single contributing signal at entry
// time. Neutral stances are excluded from accuracy attribution, not penalized.
type Stance string

const (
	StanceBullish Stance = "bullish"
	StanceBearish Stance = "bearish"
	StanceNeutral Stance = "neutral"
)

// SignalKind tags the known contribution kinds so the outcome analyzer's
// classification rules stay exhaustive.
type SignalKind string

const (
	// SignalKindIndicator is a technical-indicator reading (RSI, MACD, ...).
	// The formula itself is opaque to the engine; only the stance matters.
	SignalKindIndicator SignalKind = "indicator"
	// SignalKindModel is an AI-provider directional prediction.
	SignalKindModel SignalKind = "model"
	// SignalKindFlow is an order-flow or price-action reading.
	SignalKindFlow SignalKind = "flow"
)

// SignalContribution is one element of the frozen signal snapshot recorded on
// a Position at entry. Optional readings use pointers rather than an open map
// so downstream attribution is statically checkable.
type SignalContribution struct {
	Kind     SignalKind `json:"kind"`
	Name     string     `json:"name"`               // e.g. "rsi", "macd", provider model id
	Stance   Stance     `json:"stance"`             // directional call at entry time
	Value    *float64   `json:"value,omitempty"`    // raw reading, when the kind has one
	Weight   *float64   `json:"weight,omitempty"`   // contribution weight, when scored
	Provider string     `json:"provider,omitempty"` // AI provider id for model contributions
}

// Prediction is the signal source's directional call for the current window.
type Prediction struct {
	Direction  Direction            `json:"direction"`
	Confidence float64              `json:"confidence"` // 0..100
	Provenance string               `json:"provenance"`
	Rationale  string               `json:"rationale,omitempty"`
	Regime     string               `json:"regime,omitempty"`
	Signals    []SignalContribution `json:"signals,omitempty"`
	// Stale is set by caching decorators when the prediction was served from
	// cache under rate limiting.
	Stale bool `json:"stale,omitempty"`
}

// MarketTick is the per-tick market view of the current window.
type MarketTick struct {
	WindowID      string    `json:"window_id"`
	UpPrice       float64   `json:"up_price"`       // price of the UP side, (0,1)
	DownPrice     float64   `json:"down_price"`     // price of the DOWN side, (0,1)
	TimeRemaining float64   `json:"time_remaining"` // minutes until the window settles
	// Delta is current price minus the window's price-to-beat. Nil when the
	// reference price is not yet known.
	Delta      *float64  `json:"delta,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// SideFor maps a side to its market price within this tick.
func (t MarketTick) SideFor(side Side) float64 {
	if side == SideLong {
		return t.UpPrice
	}
	return t.DownPrice
}

// TickSnapshot is the atomic input handed to the engine once per tick. The
// caller resolves market data and the prediction before constructing it; the
// engine never observes a partially-updated snapshot.
type TickSnapshot struct {
	Market     MarketTick `json:"market"`
	Prediction Prediction `json:"prediction"`
}
