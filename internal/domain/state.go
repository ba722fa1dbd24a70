package domain

import "time"

// RiskConfig is the single versioned risk-configuration record. All tunable
// thresholds live here; the engine mutates it only through the explicit
// settings operation or the adaptive controller.
type RiskConfig struct {
	Version int `json:"version" toml:"version"`

	InitialCapital float64 `json:"initial_capital" toml:"initial_capital"`

	// RiskFraction is the per-trade capital fraction in paper mode. The
	// adaptive controller may retune it between MinRiskFraction and its
	// configured starting value.
	RiskFraction    float64 `json:"risk_fraction" toml:"risk_fraction"`
	MinRiskFraction float64 `json:"min_risk_fraction" toml:"min_risk_fraction"`
	MaxRiskFraction float64 `json:"max_risk_fraction" toml:"max_risk_fraction"`

	// FixedStake is the base stake in real mode, a currency cap rather than
	// a capital fraction.
	FixedStake float64 `json:"fixed_stake" toml:"fixed_stake"`

	MartingaleEnabled    bool    `json:"martingale_enabled" toml:"martingale_enabled"`
	MartingaleMultiplier float64 `json:"martingale_multiplier" toml:"martingale_multiplier"`
	MartingaleMaxLevel   int     `json:"martingale_max_level" toml:"martingale_max_level"`
	MartingaleStakeCap   float64 `json:"martingale_stake_cap" toml:"martingale_stake_cap"`

	// ConfidenceThreshold is the minimum prediction confidence for entry.
	// The adaptive controller moves it, never below ConfidenceFloor.
	ConfidenceThreshold float64 `json:"confidence_threshold" toml:"confidence_threshold"`
	ConfidenceFloor     float64 `json:"confidence_floor" toml:"confidence_floor"`

	// Entry is rejected when the window has less than MinTimeRemaining or
	// more than MaxTimeRemaining minutes left.
	MinTimeRemaining float64 `json:"min_time_remaining" toml:"min_time_remaining"`
	MaxTimeRemaining float64 `json:"max_time_remaining" toml:"max_time_remaining"`

	// DrawdownHalt blocks paper entries once drawdown from initial capital
	// reaches this fraction; the halt self-clears when balance recovers.
	DrawdownHalt float64 `json:"drawdown_halt" toml:"drawdown_halt"`
	// DrawdownDerisk is the drawdown-from-peak fraction beyond which paper
	// sizing scales the risk fraction down by (1 - drawdown).
	DrawdownDerisk float64 `json:"drawdown_derisk" toml:"drawdown_derisk"`

	// DailyLossCap halts real entries for the rest of the calendar day once
	// cumulative realized daily loss reaches it.
	DailyLossCap float64 `json:"daily_loss_cap" toml:"daily_loss_cap"`

	// AdaptiveWindow is the number of recent settled trades the adaptive
	// controller observes. JournalLimit bounds the paper journal.
	AdaptiveWindow int `json:"adaptive_window" toml:"adaptive_window"`
	JournalLimit   int `json:"journal_limit" toml:"journal_limit"`
}

// EngineState is the full persisted state of one engine variant. It is owned
// exclusively by the tick loop and written to the state store after every
// transition.
type EngineState struct {
	Mode Mode `json:"mode"`

	// Capital is the paper ledger. Real mode has no internal balance; it
	// accounts in RealizedPnL and DailyLoss only.
	Capital     float64 `json:"capital"`
	RealizedPnL float64 `json:"realized_pnl"`
	DailyLoss   float64 `json:"daily_loss"`
	DailyDate   string  `json:"daily_date"` // calendar day the DailyLoss belongs to, "2006-01-02"

	Open *Position `json:"open,omitempty"`

	// LastSettledWindowID guards against re-entering the window that was
	// just resolved. LastDelta is the most recent observed settlement delta.
	LastSettledWindowID string   `json:"last_settled_window_id"`
	LastDelta           *float64 `json:"last_delta,omitempty"`

	MartingaleLevel int `json:"martingale_level"`

	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Voids  int `json:"voids"`
	// Streak is positive for consecutive wins, negative for consecutive
	// losses; it flips sign on an outcome flip.
	Streak      int     `json:"streak"`
	PeakBalance float64 `json:"peak_balance"`

	Halted     bool   `json:"halted"`
	HaltReason string `json:"halt_reason,omitempty"`
	// SessionConfirmed must be explicitly set after every halt or process
	// restart before real-mode entries are permitted.
	SessionConfirmed bool `json:"session_confirmed"`

	Risk RiskConfig `json:"risk"`

	// History is the unbounded append-only settled-trade log. Journal is the
	// paper variant's bounded recent-trade journal.
	History []SettledTrade `json:"history"`
	Journal []JournalEntry `json:"journal,omitempty"`

	Learning *LearningProfile `json:"learning,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Balance returns the variant's running balance figure: capital for paper,
// cumulative realized PnL for real.
func (s *EngineState) Balance() float64 {
	if s.Mode == ModeReal {
		return s.RealizedPnL
	}
	return s.Capital
}

// Drawdown returns the fraction of initial capital lost, never negative.
// Real mode measures drawdown against realized losses on the same base.
func (s *EngineState) Drawdown() float64 {
	initial := s.Risk.InitialCapital
	if initial <= 0 {
		return 0
	}
	var dd float64
	if s.Mode == ModeReal {
		dd = -s.RealizedPnL / initial
	} else {
		dd = (initial - s.Capital) / initial
	}
	if dd < 0 {
		return 0
	}
	return dd
}
