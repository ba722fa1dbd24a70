package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

var guardNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestPaperGuard_DrawdownHaltAndRecovery(t *testing.T) {
	s := paperState(84, 100) // 16% drawdown from initial 100, threshold 15%
	ok, reason := guardEntry(s, guardNow)
	assert.False(t, ok)
	assert.Contains(t, reason, "drawdown")
	assert.True(t, s.Halted)

	// Settlement proceeds regardless; only entries are gated. Recovery
	// clears the halt without operator action.
	s.Capital = 86
	ok, _ = guardEntry(s, guardNow)
	assert.True(t, ok)
	assert.False(t, s.Halted)
	assert.Empty(t, s.HaltReason)
}

func realState() *domain.EngineState {
	s := &domain.EngineState{
		Mode:             domain.ModeReal,
		Risk:             testConfig(),
		DailyDate:        "2025-06-01",
		SessionConfirmed: true,
	}
	return s
}

func TestRealGuard_DailyLossCap(t *testing.T) {
	s := realState()
	s.DailyLoss = 19.99
	ok, _ := guardEntry(s, guardNow)
	assert.True(t, ok)

	s.DailyLoss = 20
	ok, reason := guardEntry(s, guardNow)
	assert.False(t, ok)
	assert.Contains(t, reason, "daily loss")
	assert.True(t, s.Halted)

	// The halt persists on later same-day checks even with no further loss.
	s.DailyLoss = 0
	ok, _ = guardEntry(s, guardNow)
	assert.False(t, ok)
}

func TestRealGuard_CalendarRollover(t *testing.T) {
	s := realState()
	s.DailyLoss = 25
	guardEntry(s, guardNow) // engages the halt

	nextDay := guardNow.Add(24 * time.Hour)
	ok, reason := guardEntry(s, nextDay)
	assert.False(t, ok, "new day still needs session confirmation")
	assert.Equal(t, "session not confirmed", reason)
	assert.False(t, s.Halted)
	assert.Zero(t, s.DailyLoss)

	s.SessionConfirmed = true
	ok, _ = guardEntry(s, nextDay)
	assert.True(t, ok)
}

func TestRealGuard_KillSwitchSurvivesRollover(t *testing.T) {
	s := realState()
	s.Halted = true
	s.HaltReason = haltReasonKillSwitch

	ok, reason := guardEntry(s, guardNow.Add(48*time.Hour))
	assert.False(t, ok)
	assert.Equal(t, haltReasonKillSwitch, reason)
	assert.True(t, s.Halted, "only an explicit confirmation clears a kill switch")
}

func TestRealGuard_SessionConfirmationRequired(t *testing.T) {
	s := realState()
	s.SessionConfirmed = false
	ok, reason := guardEntry(s, guardNow)
	assert.False(t, ok)
	assert.Equal(t, "session not confirmed", reason)
}

func TestRecordRealLoss(t *testing.T) {
	s := realState()
	recordRealLoss(s, -5, guardNow)
	recordRealLoss(s, 3, guardNow) // profits do not reduce the counter
	recordRealLoss(s, -2, guardNow)
	assert.InDelta(t, 7, s.DailyLoss, 1e-9)

	recordRealLoss(s, -1, guardNow.Add(24*time.Hour))
	assert.InDelta(t, 1, s.DailyLoss, 1e-9, "counter resets at day rollover")
}
