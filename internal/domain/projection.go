package domain

import "time"

// OpenPositionView is the public summary of the open position. It omits
// internal-only fields such as the raw signal snapshot.
type OpenPositionView struct {
	WindowID   string    `json:"window_id"`
	Side       Side      `json:"side"`
	Entry      float64   `json:"entry"`
	Stake      float64   `json:"stake"`
	Shares     float64   `json:"shares"`
	Confidence float64   `json:"confidence"`
	Provenance string    `json:"provenance"`
	OpenedAt   time.Time `json:"opened_at"`
}

// MartingaleStatus reports the sizing ladder's current state.
type MartingaleStatus struct {
	Enabled    bool    `json:"enabled"`
	Level      int     `json:"level"`
	MaxLevel   int     `json:"max_level"`
	Multiplier float64 `json:"multiplier"`
}

// ProtectionStatus reports the capital-protection guard's state in plain
// terms. The projection always reflects the true halt reason.
type ProtectionStatus struct {
	Halted           bool    `json:"halted"`
	Reason           string  `json:"reason,omitempty"`
	Drawdown         float64 `json:"drawdown"`
	DailyLoss        float64 `json:"daily_loss"`
	DailyLossCap     float64 `json:"daily_loss_cap"`
	SessionConfirmed bool    `json:"session_confirmed"`
}

// StateProjection is the read-only, deep copy of engine state returned from
// every tick and control operation. Mutating it never affects the engine.
type StateProjection struct {
	Mode Mode `json:"mode"`

	Capital     float64 `json:"capital"`
	RealizedPnL float64 `json:"realized_pnl"`
	PeakBalance float64 `json:"peak_balance"`

	Open *OpenPositionView `json:"open,omitempty"`

	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Voids  int `json:"voids"`
	Streak int `json:"streak"`

	ConfidenceThreshold float64 `json:"confidence_threshold"`
	RiskFraction        float64 `json:"risk_fraction"`

	Metrics    RiskMetrics      `json:"metrics"`
	Martingale MartingaleStatus `json:"martingale"`
	Protection ProtectionStatus `json:"protection"`

	RecentTrades []SettledTrade   `json:"recent_trades,omitempty"`
	Learning     *LearningProfile `json:"learning,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}
