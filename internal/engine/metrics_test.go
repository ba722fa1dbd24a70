package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

func trade(outcome domain.Outcome, stake, pnl float64) domain.SettledTrade {
	return domain.SettledTrade{
		Position: domain.Position{Stake: stake, Shares: stake / 0.5, Entry: 0.5},
		Outcome:  outcome,
		PnL:      pnl,
	}
}

func TestComputeMetrics_Empty(t *testing.T) {
	m := ComputeMetrics(nil, 100, 100, 100)
	assert.Zero(t, m.TotalTrades)
	assert.Zero(t, m.WinRate)
	assert.Zero(t, m.Drawdown)
}

func TestComputeMetrics_Counts(t *testing.T) {
	history := []domain.SettledTrade{
		trade(domain.OutcomeWin, 3, 3),
		trade(domain.OutcomeLoss, 3, -3),
		trade(domain.OutcomeVoid, 3, 0),
		trade(domain.OutcomeWin, 3, 3),
	}
	m := ComputeMetrics(history, 100, 103, 106)

	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, 2, m.Wins)
	assert.Equal(t, 1, m.Losses)
	assert.Equal(t, 1, m.Voids)
	assert.InDelta(t, 2.0/3.0, m.WinRate, 1e-9, "voids excluded from the win rate")
}

func TestComputeMetrics_ProfitFactor(t *testing.T) {
	history := []domain.SettledTrade{
		trade(domain.OutcomeWin, 3, 6),
		trade(domain.OutcomeLoss, 3, -3),
	}
	m := ComputeMetrics(history, 100, 103, 103)
	assert.InDelta(t, 2.0, m.ProfitFactor, 1e-9)
	assert.InDelta(t, 6, m.GrossProfit, 1e-9)
	assert.InDelta(t, 3, m.GrossLoss, 1e-9)

	// No losses: profit factor reports zero rather than infinity.
	m = ComputeMetrics(history[:1], 100, 106, 106)
	assert.Zero(t, m.ProfitFactor)
}

func TestComputeMetrics_Streaks(t *testing.T) {
	history := []domain.SettledTrade{
		trade(domain.OutcomeWin, 3, 3),
		trade(domain.OutcomeWin, 3, 3),
		trade(domain.OutcomeWin, 3, 3),
		trade(domain.OutcomeLoss, 3, -3),
		trade(domain.OutcomeLoss, 3, -3),
		trade(domain.OutcomeWin, 3, 3),
	}
	m := ComputeMetrics(history, 100, 103, 109)
	assert.Equal(t, 3, m.BestWinStreak)
	assert.Equal(t, 2, m.WorstLossStreak)
	assert.Equal(t, 1, m.CurrentStreak)
}

func TestComputeMetrics_Drawdown(t *testing.T) {
	m := ComputeMetrics(nil, 100, 85, 100)
	assert.InDelta(t, 0.15, m.Drawdown, 1e-9)

	// Max drawdown walks the balance series.
	history := []domain.SettledTrade{
		trade(domain.OutcomeWin, 10, 20), // 120
		trade(domain.OutcomeLoss, 30, -30), // 90: 25% off the 120 peak
		trade(domain.OutcomeWin, 10, 40), // 130
	}
	m = ComputeMetrics(history, 100, 130, 130)
	assert.InDelta(t, 0.25, m.MaxDrawdown, 1e-9)
}

func TestComputeMetrics_Kelly(t *testing.T) {
	// 60% win rate, wins pay what losses cost: f = 0.6 - 0.4 = 0.2.
	history := []domain.SettledTrade{
		trade(domain.OutcomeWin, 3, 3),
		trade(domain.OutcomeWin, 3, 3),
		trade(domain.OutcomeWin, 3, 3),
		trade(domain.OutcomeLoss, 3, -3),
		trade(domain.OutcomeLoss, 3, -3),
	}
	m := ComputeMetrics(history, 100, 103, 109)
	assert.InDelta(t, 0.2, m.KellyFraction, 1e-9)

	// Negative edge clamps to zero.
	history = []domain.SettledTrade{
		trade(domain.OutcomeWin, 3, 1),
		trade(domain.OutcomeLoss, 3, -3),
		trade(domain.OutcomeLoss, 3, -3),
		trade(domain.OutcomeLoss, 3, -3),
	}
	m = ComputeMetrics(history, 100, 92, 101)
	assert.Zero(t, m.KellyFraction)
}

func TestComputeMetrics_SharpeZeroVariance(t *testing.T) {
	history := []domain.SettledTrade{
		trade(domain.OutcomeWin, 3, 3),
		trade(domain.OutcomeWin, 3, 3),
	}
	m := ComputeMetrics(history, 100, 106, 106)
	assert.Zero(t, m.SharpeRatio, "identical returns have no variance")
}
