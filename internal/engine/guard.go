package engine

import (
	"fmt"
	"time"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// Halt reasons surfaced through the public projection.
const (
	haltReasonDrawdown   = "drawdown halt"
	haltReasonDailyLoss  = "daily loss cap reached"
	haltReasonKillSwitch = "kill switch engaged"
)

// guardEntry decides whether the capital-protection guard permits a new
// entry right now. It returns false with a plain-terms reason when blocked.
// Settlement is never gated; only entries are.
func guardEntry(state *domain.EngineState, now time.Time) (bool, string) {
	if state.Mode == domain.ModePaper {
		return paperGuard(state)
	}
	return realGuard(state, now)
}

// paperGuard enforces the soft drawdown halt. It self-clears: once the
// balance recovers above the threshold on a later tick, entries resume.
func paperGuard(state *domain.EngineState) (bool, string) {
	threshold := state.Risk.DrawdownHalt
	if threshold <= 0 {
		return true, ""
	}
	dd := state.Drawdown()
	if dd >= threshold {
		state.Halted = true
		state.HaltReason = fmt.Sprintf("%s: drawdown %.1f%% >= %.1f%%", haltReasonDrawdown, dd*100, threshold*100)
		return false, state.HaltReason
	}
	if state.Halted {
		// Recovered below the threshold: the soft halt clears itself.
		state.Halted = false
		state.HaltReason = ""
	}
	return true, ""
}

// realGuard enforces the persistent daily-loss halt and the session
// confirmation requirement. The daily-loss halt does not clear on a
// profitable tick; only a calendar-day rollover or an operator reset does.
func realGuard(state *domain.EngineState, now time.Time) (bool, string) {
	rollDailyLoss(state, now)

	if state.Halted {
		return false, state.HaltReason
	}

	if cap := state.Risk.DailyLossCap; cap > 0 && state.DailyLoss >= cap {
		state.Halted = true
		state.HaltReason = fmt.Sprintf("%s: %.2f >= %.2f", haltReasonDailyLoss, state.DailyLoss, cap)
		return false, state.HaltReason
	}

	if !state.SessionConfirmed {
		return false, "session not confirmed"
	}
	return true, ""
}

// rollDailyLoss resets the daily loss accumulator at calendar-day rollover.
// A daily-loss halt (but not a kill switch) clears with the new day; session
// confirmation is still required before the next entry.
func rollDailyLoss(state *domain.EngineState, now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if state.DailyDate == day {
		return
	}
	state.DailyDate = day
	state.DailyLoss = 0
	if state.Halted && state.HaltReason != haltReasonKillSwitch {
		state.Halted = false
		state.HaltReason = ""
		state.SessionConfirmed = false
	}
}

// recordRealLoss accumulates realized losses into the daily counter.
func recordRealLoss(state *domain.EngineState, pnl float64, now time.Time) {
	rollDailyLoss(state, now)
	if pnl < 0 {
		state.DailyLoss += -pnl
	}
}
