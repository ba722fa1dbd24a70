package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// memStore is an in-memory StateStore that round-trips through JSON-free deep
// copies, mimicking a durable singleton record.
type memStore struct {
	records map[string]domain.EngineState
	fail    bool
	saves   int
}

func newMemStore() *memStore {
	return &memStore{records: map[string]domain.EngineState{}}
}

func (m *memStore) Load(_ context.Context, key string) (*domain.EngineState, error) {
	rec, ok := m.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := rec
	cp.History = append([]domain.SettledTrade(nil), rec.History...)
	cp.Journal = append([]domain.JournalEntry(nil), rec.Journal...)
	if rec.Open != nil {
		open := *rec.Open
		cp.Open = &open
	}
	return &cp, nil
}

func (m *memStore) Save(_ context.Context, key string, state *domain.EngineState) error {
	if m.fail {
		return assert.AnError
	}
	m.saves++
	cp := *state
	cp.History = append([]domain.SettledTrade(nil), state.History...)
	cp.Journal = append([]domain.JournalEntry(nil), state.Journal...)
	if state.Open != nil {
		open := *state.Open
		cp.Open = &open
	}
	m.records[key] = cp
	return nil
}

// stubVenue acknowledges every order unless told to fail.
type stubVenue struct {
	fail      bool
	submitted int
	cancelled bool
}

func (v *stubVenue) SubmitBuy(_ context.Context, _ domain.Side, _, _ float64) (domain.OrderAck, error) {
	if v.fail {
		return domain.OrderAck{}, domain.ErrOrderRejected
	}
	v.submitted++
	return domain.OrderAck{OrderID: "ord-1"}, nil
}

func (v *stubVenue) CancelAll(_ context.Context) error {
	v.cancelled = true
	return nil
}

func testConfig() domain.RiskConfig {
	return domain.RiskConfig{
		Version:              1,
		InitialCapital:       100,
		RiskFraction:         0.03,
		MinRiskFraction:      0.01,
		MaxRiskFraction:      0.05,
		FixedStake:           10,
		MartingaleMultiplier: 2,
		MartingaleMaxLevel:   3,
		MartingaleStakeCap:   50,
		ConfidenceThreshold:  72,
		ConfidenceFloor:      60,
		MinTimeRemaining:     2,
		MaxTimeRemaining:     13,
		DrawdownHalt:         0.15,
		DrawdownDerisk:       0.05,
		DailyLossCap:         20,
		AdaptiveWindow:       10,
		JournalLimit:         5,
	}
}

func newPaperEngine(t *testing.T, store *memStore) *Engine {
	t.Helper()
	e, err := New(context.Background(), domain.ModePaper, testConfig(), Options{
		Store: store,
		Clock: func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return e
}

func snapshot(windowID string, delta *float64) domain.TickSnapshot {
	return domain.TickSnapshot{
		Market: domain.MarketTick{
			WindowID:      windowID,
			UpPrice:       0.40,
			DownPrice:     0.60,
			TimeRemaining: 10,
			Delta:         delta,
		},
		Prediction: domain.Prediction{
			Direction:  domain.DirectionLong,
			Confidence: 80,
			Provenance: "ensemble",
			Regime:     "trending",
		},
	}
}

func fptr(f float64) *float64 { return &f }

// settleSnap is a snapshot that can settle an open position but never opens a
// new one (the source declines to call a direction).
func settleSnap(windowID string, delta *float64) domain.TickSnapshot {
	s := snapshot(windowID, delta)
	s.Prediction.Direction = domain.DirectionUnknown
	return s
}

func TestTick_EntryThenWin(t *testing.T) {
	e := newPaperEngine(t, newMemStore())
	ctx := context.Background()

	// Entry at 0.40 with 3% of 100 capital: stake 3.00, shares 7.5.
	proj, err := e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	require.NotNil(t, proj.Open)
	assert.InDelta(t, 3.00, proj.Open.Stake, 1e-9)
	assert.InDelta(t, 7.5, proj.Open.Shares, 1e-9)
	assert.InDelta(t, 97.00, proj.Capital, 1e-9)

	// Delta goes positive, then the window rolls over: LONG wins.
	_, err = e.Tick(ctx, snapshot("w1", fptr(5)))
	require.NoError(t, err)
	proj, err = e.Tick(ctx, settleSnap("w2", fptr(1)))
	require.NoError(t, err)

	require.Nil(t, proj.Open, "position should be settled at rollover")
	assert.InDelta(t, 104.50, proj.Capital, 1e-9)
	require.Len(t, proj.RecentTrades, 1)
	trade := proj.RecentTrades[0]
	assert.Equal(t, domain.OutcomeWin, trade.Outcome)
	assert.InDelta(t, 4.50, trade.PnL, 1e-9)
	assert.Equal(t, 1, proj.Wins)
	assert.Equal(t, 1, proj.Streak)
}

func TestTick_EntryThenLoss(t *testing.T) {
	e := newPaperEngine(t, newMemStore())
	ctx := context.Background()

	_, err := e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	e.SetMartingale(ctx, true)

	_, err = e.Tick(ctx, snapshot("w1", fptr(-5)))
	require.NoError(t, err)
	proj, err := e.Tick(ctx, settleSnap("w2", fptr(-1)))
	require.NoError(t, err)

	require.Nil(t, proj.Open)
	assert.InDelta(t, 97.00, proj.Capital, 1e-9)
	require.Len(t, proj.RecentTrades, 1)
	assert.Equal(t, domain.OutcomeLoss, proj.RecentTrades[0].Outcome)
	assert.InDelta(t, -3.00, proj.RecentTrades[0].PnL, 1e-9)
	assert.Equal(t, 1, proj.Martingale.Level, "martingale level should step up after a loss")
	assert.Equal(t, -1, proj.Streak)
}

func TestTick_VoidOnMissingDelta(t *testing.T) {
	e := newPaperEngine(t, newMemStore())
	ctx := context.Background()

	_, err := e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)

	// Rollover with no delta ever observed: the window voids and the stake
	// comes back.
	proj, err := e.Tick(ctx, settleSnap("w2", nil))
	require.NoError(t, err)
	require.Len(t, proj.RecentTrades, 1)
	assert.Equal(t, domain.OutcomeVoid, proj.RecentTrades[0].Outcome)
	assert.InDelta(t, 0, proj.RecentTrades[0].PnL, 1e-9)
	assert.InDelta(t, 100.00, proj.Capital, 1e-9)
}

func TestTick_TimeExpirySettlement(t *testing.T) {
	e := newPaperEngine(t, newMemStore())
	ctx := context.Background()

	_, err := e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)

	// Same window, but time has run out and a non-zero delta is present.
	snap := snapshot("w1", fptr(3))
	snap.Market.TimeRemaining = 0.05
	proj, err := e.Tick(ctx, snap)
	require.NoError(t, err)

	require.Nil(t, proj.Open)
	require.Len(t, proj.RecentTrades, 1)
	assert.Equal(t, domain.OutcomeWin, proj.RecentTrades[0].Outcome)
}

func TestTick_NeverReentersSettledWindow(t *testing.T) {
	e := newPaperEngine(t, newMemStore())
	ctx := context.Background()

	_, err := e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	_, err = e.Tick(ctx, snapshot("w1", fptr(5)))
	require.NoError(t, err)

	// w1 settles at the w2 rollover, leaving the engine idle.
	proj, err := e.Tick(ctx, settleSnap("w2", fptr(1)))
	require.NoError(t, err)
	require.Nil(t, proj.Open)
	require.Len(t, proj.RecentTrades, 1)

	// A usable signal for the just-settled window must not re-enter it.
	proj, err = e.Tick(ctx, snapshot("w1", fptr(1)))
	require.NoError(t, err)
	assert.Nil(t, proj.Open)
	assert.Len(t, proj.RecentTrades, 1)
}

func TestTick_IdempotentReplay(t *testing.T) {
	e := newPaperEngine(t, newMemStore())
	ctx := context.Background()

	_, err := e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	_, err = e.Tick(ctx, snapshot("w1", fptr(5)))
	require.NoError(t, err)
	first, err := e.Tick(ctx, snapshot("w2", fptr(1)))
	require.NoError(t, err)

	// Replaying the identical tick input: the already-settled w1 trade is
	// not settled twice and nothing else changes.
	replay, err := e.Tick(ctx, snapshot("w2", fptr(1)))
	require.NoError(t, err)
	assert.Equal(t, len(first.RecentTrades), len(replay.RecentTrades))
	assert.Equal(t, first.Capital, replay.Capital)
	assert.Equal(t, first.Wins, replay.Wins)
	require.NotNil(t, replay.Open)
	assert.Equal(t, first.Open.WindowID, replay.Open.WindowID)
}

func TestTick_AtMostOneOpenPosition(t *testing.T) {
	e := newPaperEngine(t, newMemStore())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		proj, err := e.Tick(ctx, snapshot("w1", nil))
		require.NoError(t, err)
		require.NotNil(t, proj.Open)
		assert.Equal(t, "w1", proj.Open.WindowID)
		assert.InDelta(t, 97.00, proj.Capital, 1e-9, "capital must be debited exactly once")
	}
}

func TestTick_EntryGates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.TickSnapshot)
	}{
		{"unknown direction", func(s *domain.TickSnapshot) { s.Prediction.Direction = domain.DirectionUnknown }},
		{"confidence below threshold", func(s *domain.TickSnapshot) { s.Prediction.Confidence = 71 }},
		{"too late in window", func(s *domain.TickSnapshot) { s.Market.TimeRemaining = 1 }},
		{"too early in window", func(s *domain.TickSnapshot) { s.Market.TimeRemaining = 14 }},
		{"up price at bound", func(s *domain.TickSnapshot) { s.Market.UpPrice = 1.0 }},
		{"down price at zero", func(s *domain.TickSnapshot) { s.Market.DownPrice = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newPaperEngine(t, newMemStore())
			snap := snapshot("w1", nil)
			tt.mutate(&snap)
			proj, err := e.Tick(context.Background(), snap)
			require.NoError(t, err)
			assert.Nil(t, proj.Open)
			assert.InDelta(t, 100.00, proj.Capital, 1e-9)
		})
	}
}

func TestTick_DrawdownHaltBlocksEntry(t *testing.T) {
	store := newMemStore()
	e := newPaperEngine(t, store)
	ctx := context.Background()

	// Force the ledger to a 15% drawdown against a 0.15 halt threshold.
	e.mu.Lock()
	e.state.Capital = 85
	e.mu.Unlock()

	proj, err := e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	assert.Nil(t, proj.Open)
	assert.True(t, proj.Protection.Halted)
	assert.Contains(t, proj.Protection.Reason, "drawdown")

	// Recovery above the 85%-of-initial mark self-clears the halt.
	e.mu.Lock()
	e.state.Capital = 90
	e.mu.Unlock()
	proj, err = e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	assert.False(t, proj.Protection.Halted)
	require.NotNil(t, proj.Open)
}

func TestTick_RealDailyLossHaltPersists(t *testing.T) {
	store := newMemStore()
	venue := &stubVenue{}
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e, err := New(context.Background(), domain.ModeReal, testConfig(), Options{
		Store: store,
		Venue: venue,
		Clock: func() time.Time { return clock },
	})
	require.NoError(t, err)
	ctx := context.Background()
	e.ConfirmSession(ctx)

	e.mu.Lock()
	e.state.DailyLoss = 20 // at the cap
	e.state.DailyDate = "2025-06-01"
	e.mu.Unlock()

	// Halt engages and persists across profitable-looking ticks.
	for i := 0; i < 3; i++ {
		proj, err := e.Tick(ctx, snapshot("w1", nil))
		require.NoError(t, err)
		assert.Nil(t, proj.Open)
		assert.True(t, proj.Protection.Halted)
		assert.Contains(t, proj.Protection.Reason, "daily loss")
	}

	// Calendar-day rollover clears the halt but demands re-confirmation.
	clock = clock.Add(24 * time.Hour)
	proj, err := e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	assert.False(t, proj.Protection.Halted)
	assert.Nil(t, proj.Open, "entry still blocked until session re-confirmed")
	assert.False(t, proj.Protection.SessionConfirmed)

	e.ConfirmSession(ctx)
	proj, err = e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	require.NotNil(t, proj.Open)
	assert.Equal(t, 1, venue.submitted)
}

func TestTick_RealEntryRequiresAck(t *testing.T) {
	venue := &stubVenue{fail: true}
	e, err := New(context.Background(), domain.ModeReal, testConfig(), Options{
		Store: newMemStore(),
		Venue: venue,
	})
	require.NoError(t, err)
	ctx := context.Background()
	e.ConfirmSession(ctx)

	proj, err := e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	assert.Nil(t, proj.Open, "rejected submission must not record a position")

	// The next tick re-evaluates from scratch and succeeds.
	venue.fail = false
	proj, err = e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	require.NotNil(t, proj.Open)
}

func TestTick_PhantomPositionCleared(t *testing.T) {
	venue := &stubVenue{}
	e, err := New(context.Background(), domain.ModeReal, testConfig(), Options{
		Store: newMemStore(),
		Venue: venue,
	})
	require.NoError(t, err)
	ctx := context.Background()

	e.mu.Lock()
	e.state.Open = &domain.Position{ID: "p1", WindowID: "w1", Side: domain.SideLong, Entry: 0.4, Stake: 4, Shares: 10}
	e.mu.Unlock()

	proj, err := e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	assert.Nil(t, proj.Open)
	assert.Empty(t, proj.RecentTrades, "a phantom clear is not a settlement")
}

func TestKillSwitch(t *testing.T) {
	venue := &stubVenue{}
	e, err := New(context.Background(), domain.ModeReal, testConfig(), Options{
		Store: newMemStore(),
		Venue: venue,
	})
	require.NoError(t, err)
	ctx := context.Background()
	e.ConfirmSession(ctx)

	_, err = e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)

	proj := e.KillSwitch(ctx)
	assert.True(t, venue.cancelled)
	assert.Nil(t, proj.Open)
	assert.True(t, proj.Protection.Halted)
	assert.False(t, proj.Protection.SessionConfirmed)

	// Entry stays blocked until an explicit re-confirmation.
	proj, err = e.Tick(ctx, snapshot("w2", nil))
	require.NoError(t, err)
	assert.Nil(t, proj.Open)

	e.ConfirmSession(ctx)
	proj, err = e.Tick(ctx, snapshot("w2", nil))
	require.NoError(t, err)
	require.NotNil(t, proj.Open)
}

func TestKillSwitch_PaperModeNoOp(t *testing.T) {
	e := newPaperEngine(t, newMemStore())
	ctx := context.Background()

	// The switch never engages on the paper variant: the paper guard's halt
	// is self-clearing, so an engaged switch would release on its own.
	proj := e.KillSwitch(ctx)
	assert.False(t, proj.Protection.Halted)
	assert.Empty(t, proj.Protection.Reason)

	proj, err := e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	require.NotNil(t, proj.Open)
	assert.False(t, proj.Protection.Halted)
}

func TestPersistRoundTrip(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	e1 := newPaperEngine(t, store)
	_, err := e1.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	_, err = e1.Tick(ctx, snapshot("w1", fptr(5)))
	require.NoError(t, err)

	// A second engine booted from the same store behaves identically on the
	// same subsequent input.
	e2, err := New(ctx, domain.ModePaper, testConfig(), Options{
		Store: store,
		Clock: func() time.Time { return time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	p1, err := e1.Tick(ctx, snapshot("w2", fptr(1)))
	require.NoError(t, err)
	p2, err := e2.Tick(ctx, snapshot("w2", fptr(1)))
	require.NoError(t, err)

	assert.Equal(t, p1.Capital, p2.Capital)
	assert.Equal(t, p1.Wins, p2.Wins)
	assert.Equal(t, len(p1.RecentTrades), len(p2.RecentTrades))
	if p1.Open != nil {
		require.NotNil(t, p2.Open)
		assert.Equal(t, p1.Open.Stake, p2.Open.Stake)
	}
}

func TestTick_PersistFailureDoesNotBlockTransition(t *testing.T) {
	store := newMemStore()
	e := newPaperEngine(t, store)
	ctx := context.Background()

	store.fail = true
	saves := store.saves
	proj, err := e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	require.NotNil(t, proj.Open, "in-memory transition stands when the write fails")
	assert.Equal(t, saves, store.saves)

	// The next natural tick retries the write.
	store.fail = false
	_, err = e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	assert.Greater(t, store.saves, saves)
}

func TestReset(t *testing.T) {
	e := newPaperEngine(t, newMemStore())
	ctx := context.Background()

	_, err := e.Tick(ctx, snapshot("w1", nil))
	require.NoError(t, err)
	_, err = e.Tick(ctx, snapshot("w2", fptr(5)))
	require.NoError(t, err)

	proj := e.Reset(ctx)
	assert.InDelta(t, 100.00, proj.Capital, 1e-9)
	assert.Nil(t, proj.Open)
	assert.Empty(t, proj.RecentTrades)
	assert.Equal(t, 0, proj.Wins+proj.Losses+proj.Voids)
}

func TestMartingaleLevelBounds(t *testing.T) {
	e := newPaperEngine(t, newMemStore())
	ctx := context.Background()
	e.SetMartingale(ctx, true)

	// Lose repeatedly; the level must never exceed the configured max.
	for i := 0; i < 6; i++ {
		w := string(rune('a' + i))
		_, err := e.Tick(ctx, snapshot("w"+w, nil))
		require.NoError(t, err)
		_, err = e.Tick(ctx, snapshot("w"+w, fptr(-5)))
		require.NoError(t, err)
		next := string(rune('a' + i + 1))
		proj, err := e.Tick(ctx, snapshot("n"+next, fptr(-1)))
		require.NoError(t, err)
		assert.LessOrEqual(t, proj.Martingale.Level, 3)
		assert.GreaterOrEqual(t, proj.Martingale.Level, 0)
	}
}
