package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

func contribution(name string, stance domain.Stance) domain.SignalContribution {
	return domain.SignalContribution{Kind: domain.SignalKindIndicator, Name: name, Stance: stance}
}

func modelContribution(provider string, stance domain.Stance) domain.SignalContribution {
	return domain.SignalContribution{Kind: domain.SignalKindModel, Name: provider, Provider: provider, Stance: stance}
}

func settled(side domain.Side, outcome domain.Outcome, delta float64, signals ...domain.SignalContribution) domain.SettledTrade {
	return domain.SettledTrade{
		Position: domain.Position{
			Side:          side,
			Entry:         0.5,
			Stake:         3,
			Shares:        6,
			Confidence:    75,
			Regime:        "trending",
			TimeRemaining: 8,
			Signals:       signals,
		},
		Outcome: outcome,
		Delta:   delta,
		PnL:     map[domain.Outcome]float64{domain.OutcomeWin: 3, domain.OutcomeLoss: -3, domain.OutcomeVoid: 0}[outcome],
	}
}

var profileNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestProfile_RequiresMinimumHistory(t *testing.T) {
	a := NewAnalyzer()
	history := []domain.SettledTrade{
		settled(domain.SideLong, domain.OutcomeWin, 5),
		settled(domain.SideLong, domain.OutcomeLoss, -5),
	}
	assert.Nil(t, a.Profile(history, profileNow))
}

func TestProfile_SignalAttribution(t *testing.T) {
	a := NewAnalyzer()
	history := []domain.SettledTrade{
		// rsi was bullish and the market settled up: correct.
		settled(domain.SideLong, domain.OutcomeWin, 5, contribution("rsi", domain.StanceBullish)),
		// rsi bullish, settled down: wrong.
		settled(domain.SideLong, domain.OutcomeLoss, -5, contribution("rsi", domain.StanceBullish)),
		// neutral calls are excluded from accuracy, not penalized.
		settled(domain.SideShort, domain.OutcomeWin, -5, contribution("rsi", domain.StanceNeutral)),
		// macd needs MinSignalSamples before it is reported.
		settled(domain.SideLong, domain.OutcomeWin, 5, contribution("macd", domain.StanceBullish)),
	}
	p := a.Profile(history, profileNow)
	require.NotNil(t, p)

	require.Len(t, p.Signals, 1)
	assert.Equal(t, "rsi", p.Signals[0].Name)
	assert.Equal(t, 1, p.Signals[0].Correct)
	assert.Equal(t, 2, p.Signals[0].Total)
	assert.InDelta(t, 0.5, p.Signals[0].Accuracy, 1e-9)
}

func TestProfile_VoidsExcluded(t *testing.T) {
	a := NewAnalyzer()
	history := []domain.SettledTrade{
		settled(domain.SideLong, domain.OutcomeWin, 5),
		settled(domain.SideLong, domain.OutcomeVoid, 0),
		settled(domain.SideLong, domain.OutcomeLoss, -5),
	}
	p := a.Profile(history, profileNow)
	require.NotNil(t, p)
	require.Len(t, p.Regimes, 1)
	assert.Equal(t, 2, p.Regimes[0].Total, "void trades contribute nothing")
}

func TestProfile_ConfidenceCalibration(t *testing.T) {
	a := NewAnalyzer()
	win := settled(domain.SideLong, domain.OutcomeWin, 5)
	win.Position.Confidence = 90
	loss := settled(domain.SideLong, domain.OutcomeLoss, -5)
	loss.Position.Confidence = 70
	history := []domain.SettledTrade{win, loss, settled(domain.SideLong, domain.OutcomeWin, 5)}

	p := a.Profile(history, profileNow)
	require.NotNil(t, p)
	assert.InDelta(t, 82.5, p.AvgConfidenceWins, 1e-9)
	assert.InDelta(t, 70, p.AvgConfidenceLosses, 1e-9)
}

func TestProfile_TimeBuckets(t *testing.T) {
	a := NewAnalyzer()
	late := settled(domain.SideLong, domain.OutcomeLoss, -5)
	late.Position.TimeRemaining = 3
	mid := settled(domain.SideLong, domain.OutcomeWin, 5)
	mid.Position.TimeRemaining = 7
	early := settled(domain.SideLong, domain.OutcomeWin, 5)
	early.Position.TimeRemaining = 12

	p := a.Profile([]domain.SettledTrade{late, mid, early}, profileNow)
	require.NotNil(t, p)
	require.Len(t, p.Buckets, 3)
	assert.Equal(t, "under 5m", p.Buckets[0].Label)
	assert.Zero(t, p.Buckets[0].WinRate)
	assert.InDelta(t, 1.0, p.Buckets[1].WinRate, 1e-9)
	assert.InDelta(t, 1.0, p.Buckets[2].WinRate, 1e-9)
}

func TestProfile_ProviderStats(t *testing.T) {
	a := NewAnalyzer()
	multi := settled(domain.SideLong, domain.OutcomeWin, 5,
		modelContribution("alpha", domain.StanceBullish),
		modelContribution("beta", domain.StanceBearish),
	)
	history := []domain.SettledTrade{
		multi,
		settled(domain.SideLong, domain.OutcomeWin, 5, modelContribution("alpha", domain.StanceBullish)),
		settled(domain.SideLong, domain.OutcomeLoss, -5, modelContribution("alpha", domain.StanceBullish)),
	}
	p := a.Profile(history, profileNow)
	require.NotNil(t, p)
	require.Len(t, p.Providers, 2)

	alpha := p.Providers[0]
	assert.Equal(t, "alpha", alpha.Provider)
	assert.Equal(t, 2, alpha.Correct)
	assert.Equal(t, 3, alpha.Total)
	// Agreement only counts trades where multiple providers contributed.
	assert.InDelta(t, 1.0, alpha.Agreement, 1e-9)

	beta := p.Providers[1]
	assert.Zero(t, beta.Correct)
	assert.Zero(t, beta.Agreement)
}

func TestProfile_TrendSplit(t *testing.T) {
	a := NewAnalyzer()
	var history []domain.SettledTrade
	// Six early wins, then five recent losses.
	for i := 0; i < 6; i++ {
		history = append(history, settled(domain.SideLong, domain.OutcomeWin, 5))
	}
	for i := 0; i < 5; i++ {
		history = append(history, settled(domain.SideLong, domain.OutcomeLoss, -5))
	}
	p := a.Profile(history, profileNow)
	require.NotNil(t, p)
	assert.Zero(t, p.RecentWinRate)
	assert.InDelta(t, 1.0, p.EarlierWinRate, 1e-9)
	assert.Contains(t, joined(p.Lessons), "deteriorating")
}

func TestProfile_Lessons(t *testing.T) {
	a := NewAnalyzer()
	bad := settled(domain.SideLong, domain.OutcomeLoss, -5, contribution("rsi", domain.StanceBullish))
	bad.Position.Regime = "choppy"
	bad2 := settled(domain.SideLong, domain.OutcomeLoss, -5, contribution("rsi", domain.StanceBullish))
	bad2.Position.Regime = "choppy"
	good := settled(domain.SideShort, domain.OutcomeWin, -5, contribution("rsi", domain.StanceBearish))

	p := a.Profile([]domain.SettledTrade{bad, bad2, good}, profileNow)
	require.NotNil(t, p)

	all := joined(p.Lessons)
	assert.Contains(t, all, "choppy")
	require.NotEmpty(t, p.RecentMistakes)
	assert.Contains(t, p.RecentMistakes[0], "lost")
}

func TestRenderContext(t *testing.T) {
	a := NewAnalyzer()
	assert.Empty(t, a.RenderContext(nil))

	history := []domain.SettledTrade{
		settled(domain.SideLong, domain.OutcomeWin, 5, contribution("rsi", domain.StanceBullish)),
		settled(domain.SideLong, domain.OutcomeLoss, -5, contribution("rsi", domain.StanceBullish)),
		settled(domain.SideLong, domain.OutcomeWin, 5),
	}
	p := a.Profile(history, profileNow)
	out := a.RenderContext(p)
	assert.Contains(t, out, "3 settled trades")
	assert.Contains(t, out, "rsi")
	assert.Contains(t, out, "regime trending")
}

func joined(parts []string) string {
	out := ""
	for _, p := range parts {
		out += p + "\n"
	}
	return out
}
