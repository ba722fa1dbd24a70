package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

func paperState(capital, peak float64) *domain.EngineState {
	cfg := testConfig()
	return &domain.EngineState{
		Mode:        domain.ModePaper,
		Capital:     capital,
		PeakBalance: peak,
		Risk:        cfg,
	}
}

func TestComputeStake_PaperBase(t *testing.T) {
	s := paperState(100, 100)
	assert.InDelta(t, 3.00, computeStake(s), 1e-9)
}

func TestComputeStake_Martingale(t *testing.T) {
	tests := []struct {
		name  string
		level int
		want  float64
	}{
		{"level zero uses base", 0, 3.00},
		{"level one doubles", 1, 6.00},
		{"level two quadruples", 2, 12.00},
		{"level three hits the ladder top", 3, 24.00},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := paperState(100, 100)
			s.Risk.MartingaleEnabled = true
			s.MartingaleLevel = tt.level
			assert.InDelta(t, tt.want, computeStake(s), 1e-9)
		})
	}
}

func TestComputeStake_MartingaleHardCap(t *testing.T) {
	s := paperState(1000, 1000)
	s.Risk.MartingaleEnabled = true
	s.Risk.MartingaleStakeCap = 40
	s.MartingaleLevel = 3
	// Base 30 * 2^3 = 240, capped at 40.
	assert.InDelta(t, 40, computeStake(s), 1e-9)
}

func TestComputeStake_DrawdownDeriskOverridesMartingale(t *testing.T) {
	s := paperState(90, 100) // 10% off peak, beyond the 5% de-risk threshold
	s.Risk.MartingaleEnabled = true
	s.MartingaleLevel = 2

	// fraction 0.03 * (1 - 0.10) = 0.027; martingale multiplier ignored.
	assert.InDelta(t, 90*0.027, computeStake(s), 1e-9)
}

func TestComputeStake_DeriskFloor(t *testing.T) {
	s := paperState(40, 100) // 60% drawdown
	// 0.03 * 0.4 = 0.012, above the 0.01 floor; push further.
	s.Risk.RiskFraction = 0.012
	got := computeStake(s)
	assert.InDelta(t, 40*s.Risk.MinRiskFraction, got, 1e-9)
}

func TestComputeStake_NeverExceedsCapital(t *testing.T) {
	s := paperState(2, 100)
	s.Risk.RiskFraction = 0.9
	s.Risk.DrawdownDerisk = 0 // disable de-risking for this case
	s.Risk.MartingaleEnabled = true
	s.MartingaleLevel = 3
	assert.LessOrEqual(t, computeStake(s), s.Capital)
}

func TestComputeStake_RealFixedStake(t *testing.T) {
	s := paperState(0, 0)
	s.Mode = domain.ModeReal
	assert.InDelta(t, 10, computeStake(s), 1e-9)

	s.Risk.MartingaleEnabled = true
	s.MartingaleLevel = 2
	assert.InDelta(t, 40, computeStake(s), 1e-9)
}

func TestSharesFor(t *testing.T) {
	shares, stake := sharesFor(domain.ModePaper, 3.00, 0.40)
	assert.InDelta(t, 7.5, shares, 1e-9)
	assert.InDelta(t, 3.00, stake, 1e-9)

	// Real mode floors to whole shares and re-prices the stake.
	shares, stake = sharesFor(domain.ModeReal, 3.00, 0.40)
	assert.InDelta(t, 7, shares, 1e-9)
	assert.InDelta(t, 2.80, stake, 1e-9)

	// A floor of zero rejects the entry.
	shares, stake = sharesFor(domain.ModeReal, 0.30, 0.40)
	assert.Zero(t, shares)
	assert.Zero(t, stake)
}
