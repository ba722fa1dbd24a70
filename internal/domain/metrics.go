package domain

// RiskMetrics is the aggregate risk view computed from trade history. All
// fields are derived; none are persisted as a source of truth.
type RiskMetrics struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Voids       int     `json:"voids"`
	WinRate     float64 `json:"win_rate"` // wins / (wins + losses), voids excluded

	Drawdown    float64 `json:"drawdown"`     // current drawdown from peak balance
	MaxDrawdown float64 `json:"max_drawdown"` // worst drawdown over the history

	// ProfitFactor is gross profit over gross loss; +Inf is reported as 0
	// total-loss case with GrossLoss zero.
	ProfitFactor float64 `json:"profit_factor"`
	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"`

	SharpeRatio   float64 `json:"sharpe_ratio"`   // mean per-trade return over its stddev
	KellyFraction float64 `json:"kelly_fraction"` // win-rate edge over the average odds, clamped to [0,1]

	CurrentStreak   int `json:"current_streak"` // positive wins, negative losses
	BestWinStreak   int `json:"best_win_streak"`
	WorstLossStreak int `json:"worst_loss_streak"`
}
