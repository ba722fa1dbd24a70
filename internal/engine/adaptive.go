package engine

import "github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"

// Confidence-threshold adjustment steps. Tightening is deliberately faster
// than relaxing so a losing streak pulls the engine toward capital
// preservation quickly and a winning streak releases it slowly.
const (
	adaptiveMinSamples = 5

	tightenSevere   = 6.0 // win rate below 30%
	tightenModerate = 4.0 // below 40%
	tightenMild     = 2.0 // below 50%
	relaxStep       = 1.0 // above 60%

	thresholdCeiling = 95.0
)

// retune adjusts the confidence threshold (and, for the paper variant, the
// position-size fraction) from the win rate over the most recent settled
// trades. It reacts only to realized outcomes; voids are excluded.
func retune(state *domain.EngineState) {
	window := state.Risk.AdaptiveWindow
	if window <= 0 {
		window = 10
	}

	wins, decided := recentRecord(state.History, window)
	if decided < adaptiveMinSamples {
		return
	}
	winRate := float64(wins) / float64(decided)

	threshold := state.Risk.ConfidenceThreshold
	switch {
	case winRate < 0.30:
		threshold += tightenSevere
	case winRate < 0.40:
		threshold += tightenModerate
	case winRate < 0.50:
		threshold += tightenMild
	case winRate > 0.60:
		threshold -= relaxStep
	}
	if threshold < state.Risk.ConfidenceFloor {
		threshold = state.Risk.ConfidenceFloor
	}
	if threshold > thresholdCeiling {
		threshold = thresholdCeiling
	}
	state.Risk.ConfidenceThreshold = threshold

	if state.Mode == domain.ModePaper {
		retuneFraction(state, winRate)
	}
}

// retuneFraction moves the paper risk fraction in the same asymmetric way:
// cut hard on poor win rates, recover slowly on good ones.
func retuneFraction(state *domain.EngineState, winRate float64) {
	fraction := state.Risk.RiskFraction
	switch {
	case winRate < 0.40:
		fraction *= 0.75
	case winRate > 0.60:
		fraction *= 1.10
	default:
		return
	}
	if fraction < state.Risk.MinRiskFraction {
		fraction = state.Risk.MinRiskFraction
	}
	if state.Risk.MaxRiskFraction > 0 && fraction > state.Risk.MaxRiskFraction {
		fraction = state.Risk.MaxRiskFraction
	}
	state.Risk.RiskFraction = fraction
}

// recentRecord counts wins and decided (non-void) trades over the most recent
// window of history.
func recentRecord(history []domain.SettledTrade, window int) (wins, decided int) {
	for i := len(history) - 1; i >= 0 && decided < window; i-- {
		switch history[i].Outcome {
		case domain.OutcomeWin:
			wins++
			decided++
		case domain.OutcomeLoss:
			decided++
		}
	}
	return wins, decided
}
