package domain

import "time"

// SignalAccuracy is the per-signal attribution aggregate: how often a named
// signal's directional stance matched the realized outcome direction.
type SignalAccuracy struct {
	Name     string  `json:"name"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"` // non-neutral samples only
	Accuracy float64 `json:"accuracy"`
}

// RegimeWinRate is the win rate of trades entered under one regime label.
type RegimeWinRate struct {
	Regime  string  `json:"regime"`
	Wins    int     `json:"wins"`
	Total   int     `json:"total"`
	WinRate float64 `json:"win_rate"`
}

// TimeBucketWinRate buckets win rate by time remaining at entry.
type TimeBucketWinRate struct {
	Label   string  `json:"label"` // e.g. "late", "mid", "early"
	Wins    int     `json:"wins"`
	Total   int     `json:"total"`
	WinRate float64 `json:"win_rate"`
}

// ProviderStat aggregates accuracy and agreement per AI provider, computed
// when multiple providers contributed model predictions to the same trades.
type ProviderStat struct {
	Provider  string  `json:"provider"`
	Correct   int     `json:"correct"`
	Total     int     `json:"total"`
	Accuracy  float64 `json:"accuracy"`
	Agreement float64 `json:"agreement"` // how often this provider agreed with the ensemble direction
}

// LearningProfile is the derived post-settlement aggregate over the full
// trade history. It is purely a cache, recomputed after every settlement;
// it feeds prompt context back to the signal source and never alters model
// weights.
type LearningProfile struct {
	SampleSize int `json:"sample_size"`

	Signals   []SignalAccuracy    `json:"signals,omitempty"`
	Regimes   []RegimeWinRate     `json:"regimes,omitempty"`
	Buckets   []TimeBucketWinRate `json:"buckets,omitempty"`
	Providers []ProviderStat      `json:"providers,omitempty"`

	AvgConfidenceWins   float64 `json:"avg_confidence_wins"`
	AvgConfidenceLosses float64 `json:"avg_confidence_losses"`

	HighAgreementWinRate float64 `json:"high_agreement_win_rate"`
	HighAgreementTotal   int     `json:"high_agreement_total"`
	LowAgreementWinRate  float64 `json:"low_agreement_win_rate"`
	LowAgreementTotal    int     `json:"low_agreement_total"`

	// RecentWinRate covers the most recent five settled trades,
	// EarlierWinRate everything before them.
	RecentWinRate  float64 `json:"recent_win_rate"`
	EarlierWinRate float64 `json:"earlier_win_rate"`

	Lessons        []string `json:"lessons,omitempty"`
	RecentMistakes []string `json:"recent_mistakes,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}
