package engine

import "github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"

// Projection returns the current public state projection without mutating
// anything.
func (e *Engine) Projection() domain.StateProjection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.projectionLocked()
}

// projectionLocked builds a deep, read-only copy of the engine state for
// display and persistence by callers. The caller must hold e.mu.
func (e *Engine) projectionLocked() domain.StateProjection {
	s := e.state

	p := domain.StateProjection{
		Mode:        s.Mode,
		Capital:     s.Capital,
		RealizedPnL: s.RealizedPnL,
		PeakBalance: s.PeakBalance,
		Wins:        s.Wins,
		Losses:      s.Losses,
		Voids:       s.Voids,
		Streak:      s.Streak,

		ConfidenceThreshold: s.Risk.ConfidenceThreshold,
		RiskFraction:        s.Risk.RiskFraction,

		Metrics: ComputeMetrics(s.History, s.Risk.InitialCapital, s.Balance(), s.PeakBalance),
		Martingale: domain.MartingaleStatus{
			Enabled:    s.Risk.MartingaleEnabled,
			Level:      s.MartingaleLevel,
			MaxLevel:   s.Risk.MartingaleMaxLevel,
			Multiplier: s.Risk.MartingaleMultiplier,
		},
		Protection: domain.ProtectionStatus{
			Halted:           s.Halted,
			Reason:           s.HaltReason,
			Drawdown:         s.Drawdown(),
			DailyLoss:        s.DailyLoss,
			DailyLossCap:     s.Risk.DailyLossCap,
			SessionConfirmed: s.SessionConfirmed,
		},
		GeneratedAt: e.now(),
	}

	if s.Open != nil {
		p.Open = &domain.OpenPositionView{
			WindowID:   s.Open.WindowID,
			Side:       s.Open.Side,
			Entry:      s.Open.Entry,
			Stake:      s.Open.Stake,
			Shares:     s.Open.Shares,
			Confidence: s.Open.Confidence,
			Provenance: s.Open.Provenance,
			OpenedAt:   s.Open.OpenedAt,
		}
	}

	if n := len(s.History); n > 0 {
		start := n - recentTradeLimit
		if start < 0 {
			start = 0
		}
		p.RecentTrades = copyTrades(s.History[start:])
	}

	if s.Learning != nil {
		p.Learning = copyProfile(s.Learning)
	}

	return p
}

// copyTrades deep-copies settled trades, including each position's signal
// snapshot, so a caller can never reach back into engine state.
func copyTrades(trades []domain.SettledTrade) []domain.SettledTrade {
	out := make([]domain.SettledTrade, len(trades))
	copy(out, trades)
	for i := range out {
		out[i].Position.Signals = append([]domain.SignalContribution(nil), out[i].Position.Signals...)
	}
	return out
}

func copyProfile(p *domain.LearningProfile) *domain.LearningProfile {
	cp := *p
	cp.Signals = append([]domain.SignalAccuracy(nil), p.Signals...)
	cp.Regimes = append([]domain.RegimeWinRate(nil), p.Regimes...)
	cp.Buckets = append([]domain.TimeBucketWinRate(nil), p.Buckets...)
	cp.Providers = append([]domain.ProviderStat(nil), p.Providers...)
	cp.Lessons = append([]string(nil), p.Lessons...)
	cp.RecentMistakes = append([]string(nil), p.RecentMistakes...)
	return &cp
}
