package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

func stateWithRecord(wins, losses int) *domain.EngineState {
	s := &domain.EngineState{Mode: domain.ModePaper, Risk: testConfig()}
	for i := 0; i < wins; i++ {
		s.History = append(s.History, trade(domain.OutcomeWin, 3, 3))
	}
	for i := 0; i < losses; i++ {
		s.History = append(s.History, trade(domain.OutcomeLoss, 3, -3))
	}
	return s
}

func TestRetune_NotEnoughSamples(t *testing.T) {
	s := stateWithRecord(2, 2)
	before := s.Risk.ConfidenceThreshold
	retune(s)
	assert.Equal(t, before, s.Risk.ConfidenceThreshold)
}

func TestRetune_TighteningBands(t *testing.T) {
	tests := []struct {
		name         string
		wins, losses int
		wantDelta    float64
	}{
		{"below 30 percent tightens hardest", 2, 8, tightenSevere},
		{"below 40 percent", 3, 6, tightenModerate},
		{"below 50 percent", 4, 5, tightenMild},
		{"middling rate holds", 5, 5, 0},
		{"above 60 percent relaxes slowly", 7, 3, -relaxStep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := stateWithRecord(tt.wins, tt.losses)
			before := s.Risk.ConfidenceThreshold
			retune(s)
			assert.InDelta(t, before+tt.wantDelta, s.Risk.ConfidenceThreshold, 1e-9)
		})
	}
}

func TestRetune_FloorAndCeiling(t *testing.T) {
	s := stateWithRecord(10, 0)
	s.Risk.ConfidenceThreshold = s.Risk.ConfidenceFloor
	retune(s)
	assert.Equal(t, s.Risk.ConfidenceFloor, s.Risk.ConfidenceThreshold, "threshold never falls below the floor")

	s = stateWithRecord(0, 10)
	s.Risk.ConfidenceThreshold = 94
	retune(s)
	assert.Equal(t, thresholdCeiling, s.Risk.ConfidenceThreshold)
}

func TestRetune_PaperFractionAsymmetry(t *testing.T) {
	s := stateWithRecord(2, 8)
	retune(s)
	assert.InDelta(t, 0.03*0.75, s.Risk.RiskFraction, 1e-9, "poor win rate cuts the fraction")

	s = stateWithRecord(8, 2)
	retune(s)
	assert.InDelta(t, 0.03*1.10, s.Risk.RiskFraction, 1e-9, "good win rate recovers it slowly")

	// The fraction respects its configured band.
	s = stateWithRecord(8, 2)
	s.Risk.RiskFraction = 0.049
	retune(s)
	assert.InDelta(t, s.Risk.MaxRiskFraction, s.Risk.RiskFraction, 1e-9)
}

func TestRetune_RealModeLeavesFraction(t *testing.T) {
	s := stateWithRecord(2, 8)
	s.Mode = domain.ModeReal
	retune(s)
	assert.InDelta(t, 0.03, s.Risk.RiskFraction, 1e-9)
}

func TestRecentRecord_WindowAndVoids(t *testing.T) {
	s := stateWithRecord(6, 6)
	s.History = append(s.History, trade(domain.OutcomeVoid, 3, 0))

	wins, decided := recentRecord(s.History, 4)
	assert.Equal(t, 4, decided, "voids do not consume window slots")
	assert.Equal(t, 0, wins, "the most recent decided trades are all losses")
}
