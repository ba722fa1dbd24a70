package engine

import (
	"math"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// computeStake converts current capital, the configured risk parameters, and
// the martingale state into the stake for the next entry. A non-positive
// return means no entry should be made.
func computeStake(state *domain.EngineState) float64 {
	cfg := state.Risk

	if state.Mode == domain.ModeReal {
		stake := cfg.FixedStake
		if cfg.MartingaleEnabled && state.MartingaleLevel > 0 {
			stake = martingaleStake(stake, cfg, state.MartingaleLevel)
		}
		return stake
	}

	// Paper sizing works from a capital fraction. Drawdown de-risking
	// overrides the martingale multiplier for this entry; it does not stack.
	fraction := cfg.RiskFraction
	if dd := drawdownFromPeak(state); dd > cfg.DrawdownDerisk && cfg.DrawdownDerisk > 0 {
		derisked := fraction * (1 - dd)
		if derisked < cfg.MinRiskFraction {
			derisked = cfg.MinRiskFraction
		}
		stake := state.Capital * derisked
		return capStake(stake, state.Capital)
	}

	stake := state.Capital * fraction
	if cfg.MartingaleEnabled && state.MartingaleLevel > 0 {
		stake = martingaleStake(stake, cfg, state.MartingaleLevel)
	}
	return capStake(stake, state.Capital)
}

// martingaleStake scales the base stake by multiplier^level, bounded by the
// level cap and the absolute stake ceiling.
func martingaleStake(base float64, cfg domain.RiskConfig, level int) float64 {
	if level > cfg.MartingaleMaxLevel {
		level = cfg.MartingaleMaxLevel
	}
	stake := base * math.Pow(cfg.MartingaleMultiplier, float64(level))
	if cfg.MartingaleStakeCap > 0 && stake > cfg.MartingaleStakeCap {
		stake = cfg.MartingaleStakeCap
	}
	return stake
}

func capStake(stake, capital float64) float64 {
	if stake > capital {
		return capital
	}
	return stake
}

// drawdownFromPeak is the fraction lost from the peak balance, never negative.
func drawdownFromPeak(state *domain.EngineState) float64 {
	if state.PeakBalance <= 0 {
		return 0
	}
	dd := (state.PeakBalance - state.Balance()) / state.PeakBalance
	if dd < 0 {
		return 0
	}
	return dd
}

// sharesFor converts a stake and entry price into a share count. Real-mode
// shares are floored to whole units and the stake adjusted to match; a floor
// of zero rejects the entry.
func sharesFor(mode domain.Mode, stake, entry float64) (shares, adjustedStake float64) {
	if entry <= 0 {
		return 0, 0
	}
	shares = stake / entry
	if mode == domain.ModeReal {
		shares = math.Floor(shares)
		if shares <= 0 {
			return 0, 0
		}
		adjustedStake = shares * entry
		return shares, adjustedStake
	}
	return shares, stake
}
