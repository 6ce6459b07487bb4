package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

type recordingRunner struct {
	mu   sync.Mutex
	runs []struct {
		agentID string
		trigger domain.RunTrigger
	}
	done chan struct{}
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{done: make(chan struct{}, 64)}
}

func (r *recordingRunner) Run(_ context.Context, agentID string, trigger domain.RunTrigger) error {
	r.mu.Lock()
	r.runs = append(r.runs, struct {
		agentID string
		trigger domain.RunTrigger
	}{agentID, trigger})
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *recordingRunner) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for run %d of %d", i+1, n)
		}
	}
}

func (r *recordingRunner) snapshot() []struct {
	agentID string
	trigger domain.RunTrigger
} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]struct {
		agentID string
		trigger domain.RunTrigger
	}, len(r.runs))
	copy(out, r.runs)
	return out
}

type fakeBus struct {
	ch chan []byte
}

func (b *fakeBus) Publish(context.Context, string, []byte) error { return nil }
func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.ch, nil
}
func (b *fakeBus) StreamAppend(context.Context, string, []byte) error { return nil }
func (b *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func TestSchedulerRunsEveryAgentPerTick(t *testing.T) {
	runner := newRecordingRunner()
	sched := NewScheduler(runner, []string{"alpha", "beta"}, 10*time.Millisecond, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)

	runner.wait(t, 2)
	cancel()

	var agents []string
	for _, run := range runner.snapshot()[:2] {
		assert.Equal(t, domain.TriggerSchedule, run.trigger)
		agents = append(agents, run.agentID)
	}
	assert.ElementsMatch(t, []string{"alpha", "beta"}, agents)
}

func TestSignalListenerFansOutToAgents(t *testing.T) {
	runner := newRecordingRunner()
	bus := &fakeBus{ch: make(chan []byte, 4)}
	listener := NewSignalListener(runner, bus, "signals:market", []string{"alpha", "beta"}, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Listen(ctx)

	payload, err := json.Marshal(domain.MarketSignal{
		ID: "sig-1", Venue: domain.VenuePolymarket, Instrument: "123456789", Kind: "price_move",
	})
	require.NoError(t, err)
	bus.ch <- payload

	runner.wait(t, 2)
	for _, run := range runner.snapshot() {
		assert.Equal(t, domain.TriggerSignal, run.trigger)
	}
}

func TestSignalListenerSkipsMalformedPayloads(t *testing.T) {
	runner := newRecordingRunner()
	bus := &fakeBus{ch: make(chan []byte, 4)}
	listener := NewSignalListener(runner, bus, "signals:market", []string{"alpha"}, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Listen(ctx)

	bus.ch <- []byte("not json")
	payload, err := json.Marshal(domain.MarketSignal{ID: "sig-2", Instrument: "123456789"})
	require.NoError(t, err)
	bus.ch <- payload

	runner.wait(t, 1)
	runs := runner.snapshot()
	require.Len(t, runs, 1)
	assert.Equal(t, "alpha", runs[0].agentID)
}

func TestSignalListenerReportsClosedChannel(t *testing.T) {
	runner := newRecordingRunner()
	bus := &fakeBus{ch: make(chan []byte)}
	listener := NewSignalListener(runner, bus, "signals:market", []string{"alpha"}, slog.New(slog.DiscardHandler))

	close(bus.ch)
	err := listener.Listen(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrWSDisconnect)
}
