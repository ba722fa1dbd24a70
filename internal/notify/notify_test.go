package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

type recordingSender struct {
	mu     sync.Mutex
	name   string
	err    error
	titles []string
	bodies []string
}

func (s *recordingSender) Send(_ context.Context, title, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	s.bodies = append(s.bodies, message)
	return nil
}

func (s *recordingSender) Name() string { return s.name }

func (s *recordingSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.titles...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifier_FiltersByEventType(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{"halt"}, discardLogger())

	require.NoError(t, n.Notify(context.Background(), "trade_settled", "ignored", "body"))
	require.NoError(t, n.Notify(context.Background(), "halt", "delivered", "body"))

	assert.Equal(t, []string{"delivered"}, sender.sent())
}

func TestNotifier_EmptyFilterAllowsAll(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, nil, discardLogger())

	require.NoError(t, n.Notify(context.Background(), "anything", "delivered", "body"))
	assert.Equal(t, []string{"delivered"}, sender.sent())
}

func TestNotifier_PartialFailureStillDelivers(t *testing.T) {
	broken := &recordingSender{name: "broken", err: errors.New("boom")}
	healthy := &recordingSender{name: "healthy"}
	n := NewNotifier([]Sender{broken, healthy}, nil, discardLogger())

	err := n.NotifyAll(context.Background(), "title", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, []string{"title"}, healthy.sent())
}

// memBus is an in-process EventBus for relay tests. Channels are created up
// front in newMemBus so a payload published before the relay subscribes is
// buffered rather than dropped.
type memBus struct {
	mu       sync.Mutex
	channels map[string]chan []byte
}

func newMemBus(channels ...string) *memBus {
	b := &memBus{channels: make(map[string]chan []byte)}
	for _, name := range channels {
		b.channels[name] = make(chan []byte, 8)
	}
	return b
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	ch, ok := b.channels[channel]
	b.mu.Unlock()
	if ok {
		ch <- payload
	}
	return nil
}

func (b *memBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[channel]
	if !ok {
		ch = make(chan []byte, 8)
		b.channels[channel] = ch
	}
	return ch, nil
}

func TestRelay_ForwardsSettlementAndHalt(t *testing.T) {
	bus := newMemBus("events:settlement", "events:halt")
	sender := &recordingSender{name: "test"}
	notifier := NewNotifier([]Sender{sender}, nil, discardLogger())
	relay := NewRelay(bus, notifier, "events:settlement", "events:halt", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = relay.Run(ctx)
	}()

	trade, err := json.Marshal(domain.TradeEvent{
		Type: domain.TradeEventSettled,
		Mode: domain.ModePaper,
		Trade: &domain.SettledTrade{
			Position: domain.Position{WindowID: "w1", Side: domain.SideLong, Entry: 0.55},
			Outcome:  domain.OutcomeWin,
			PnL:      2.5,
		},
	})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, "events:settlement", trade))

	halt, err := json.Marshal(domain.HaltEvent{Mode: domain.ModeReal, Halted: true, Reason: "daily loss cap reached"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, "events:halt", halt))

	require.Eventually(t, func() bool {
		return len(sender.sent()) == 2
	}, time.Second, 10*time.Millisecond)

	// The two events arrive on separate channels; delivery order is not
	// guaranteed.
	titles := strings.Join(sender.sent(), "\n")
	assert.Contains(t, titles, "win")
	assert.Contains(t, titles, "halted")

	cancel()
	<-done
}

func TestRelay_SkipsMalformedPayloads(t *testing.T) {
	bus := newMemBus("events:settlement", "events:halt")
	sender := &recordingSender{name: "test"}
	notifier := NewNotifier([]Sender{sender}, nil, discardLogger())
	relay := NewRelay(bus, notifier, "events:settlement", "events:halt", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = relay.Run(ctx)
	}()

	require.NoError(t, bus.Publish(ctx, "events:settlement", []byte("not json")))

	ok, err := json.Marshal(domain.TradeEvent{
		Type: domain.TradeEventOpened,
		Mode: domain.ModePaper,
		Open: &domain.OpenPositionView{WindowID: "w2", Side: domain.SideShort, Entry: 0.4, Stake: 5, Confidence: 80},
	})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, "events:settlement", ok))

	require.Eventually(t, func() bool {
		return len(sender.sent()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, sender.sent()[0], "Position opened")

	cancel()
	<-done
}
