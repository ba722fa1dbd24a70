package engine

import (
	"math"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// ComputeMetrics derives the aggregate risk view from a settled-trade history.
// It is a pure function: identical inputs always yield identical metrics.
func ComputeMetrics(history []domain.SettledTrade, initial, balance, peak float64) domain.RiskMetrics {
	m := domain.RiskMetrics{TotalTrades: len(history)}

	var (
		returns      []float64
		winSum       float64
		lossSum      float64
		streak       int
		bestStreak   int
		worstStreak  int
		runBalance   = initial
		runPeak      = initial
		maxDrawdown  float64
	)

	for _, t := range history {
		switch t.Outcome {
		case domain.OutcomeWin:
			m.Wins++
			winSum += t.PnL
			if streak < 0 {
				streak = 0
			}
			streak++
			if streak > bestStreak {
				bestStreak = streak
			}
		case domain.OutcomeLoss:
			m.Losses++
			lossSum += -t.PnL
			if streak > 0 {
				streak = 0
			}
			streak--
			if streak < worstStreak {
				worstStreak = streak
			}
		case domain.OutcomeVoid:
			m.Voids++
		}

		if t.Outcome != domain.OutcomeVoid && t.Position.Stake > 0 {
			returns = append(returns, t.PnL/t.Position.Stake)
		}

		runBalance += t.PnL
		if runBalance > runPeak {
			runPeak = runBalance
		}
		if runPeak > 0 {
			if dd := (runPeak - runBalance) / runPeak; dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	decided := m.Wins + m.Losses
	if decided > 0 {
		m.WinRate = float64(m.Wins) / float64(decided)
	}

	m.GrossProfit = winSum
	m.GrossLoss = lossSum
	if lossSum > 0 {
		m.ProfitFactor = winSum / lossSum
	}

	m.SharpeRatio = sharpe(returns)
	m.KellyFraction = kelly(m.WinRate, m.Wins, m.Losses, winSum, lossSum)

	m.CurrentStreak = streak
	m.BestWinStreak = bestStreak
	m.WorstLossStreak = -worstStreak

	if peak > 0 && balance < peak {
		m.Drawdown = (peak - balance) / peak
	}
	m.MaxDrawdown = maxDrawdown

	return m
}

// sharpe is the mean per-trade return over its sample standard deviation.
// Fewer than two samples, or zero variance, yield zero.
func sharpe(returns []float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(n)

	var varSum float64
	for _, r := range returns {
		d := r - mean
		varSum += d * d
	}
	std := math.Sqrt(varSum / float64(n-1))
	if std == 0 {
		return 0
	}
	return mean / std
}

// kelly computes the Kelly fraction f = p - q/b where b is the ratio of the
// average win to the average loss, clamped to [0,1].
func kelly(winRate float64, wins, losses int, winSum, lossSum float64) float64 {
	if wins == 0 || losses == 0 {
		return 0
	}
	avgWin := winSum / float64(wins)
	avgLoss := lossSum / float64(losses)
	if avgWin <= 0 || avgLoss <= 0 {
		return 0
	}
	b := avgWin / avgLoss
	f := winRate - (1-winRate)/b
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
