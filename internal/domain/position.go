// Package domain defines the core types and collaborator contracts for the
// 15-minute prediction-window trading engine. The engine itself lives in
// internal/engine; everything it consumes or exposes is declared here.
package domain

import "time"

// Mode selects which engine variant is running.
type Mode string

const (
	// ModePaper simulates trades against an internal capital ledger.
	ModePaper Mode = "paper"
	// ModeReal submits orders to an external venue and tracks realized PnL
	// only; it carries no internal capital balance.
	ModeReal Mode = "real"
)

// Side is the direction of an open stake, mapped from the market's UP/DOWN
// outcome tokens.
type Side string

const (
	SideLong  Side = "long"  // wins when the window settles UP
	SideShort Side = "short" // wins when the window settles DOWN
)

// Outcome is the terminal result of a settled window.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	// OutcomeVoid means no settlement delta was available (or it was exactly
	// zero); the stake is returned in full.
	OutcomeVoid Outcome = "void"
)

// Position is the single currently-open stake. At most one Position exists
// per engine at any time; it is created by the entry transition and destroyed
// only by settlement.
type Position struct {
	ID       string  `json:"id"`
	WindowID string  `json:"window_id"` // market window this stake belongs to, never mutated
	Side     Side    `json:"side"`
	Entry    float64 `json:"entry"`  // entry price, strictly inside (0,1)
	Stake    float64 `json:"stake"`  // currency units debited at entry
	Shares   float64 `json:"shares"` // stake / entry

	OpenedAt        time.Time `json:"opened_at"`
	TimeRemaining   float64   `json:"time_remaining"` // minutes left in the window at entry
	Confidence      float64   `json:"confidence"`     // 0..100, from the entry prediction
	Provenance      string    `json:"provenance"`     // which source produced the prediction
	Regime          string    `json:"regime"`         // market regime label at entry
	MartingaleLevel int       `json:"martingale_level"`

	// Signals is the frozen set of contributing signals recorded at entry,
	// used after settlement to attribute the outcome to causes.
	Signals []SignalContribution `json:"signals,omitempty"`

	// ExternalOrderID is set only in real mode, from the venue's synchronous
	// acknowledgment. A real-mode Position without one is a phantom and is
	// cleared defensively on the next tick.
	ExternalOrderID string `json:"external_order_id,omitempty"`
}

// SettledTrade is the immutable historical record produced when a Position
// settles. Records are appended to an ordered history and never mutated.
type SettledTrade struct {
	Position     Position  `json:"position"`
	Outcome      Outcome   `json:"outcome"`
	PnL          float64   `json:"pnl"`
	BalanceAfter float64   `json:"balance_after"` // paper capital, or cumulative realized PnL in real mode
	Delta        float64   `json:"delta"`         // settlement delta that resolved the window
	SettledAt    time.Time `json:"settled_at"`
}

// JournalEntry is the paper variant's richer per-trade record. The journal is
// bounded (most recent N) while the raw trade history is unbounded.
type JournalEntry struct {
	Trade    SettledTrade `json:"trade"`
	Analysis string       `json:"analysis"` // short natural-language note written at settlement
}
