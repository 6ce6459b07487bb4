package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

type fakeWriter struct {
	puts map[string][]byte
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.puts == nil {
		w.puts = map[string][]byte{}
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.puts[path] = buf
	return nil
}

type fakeTradeSource struct {
	trades  []domain.TradeRecord
	deleted int64
}

func (s *fakeTradeSource) ListBefore(_ context.Context, _ time.Time, _ int) ([]domain.TradeRecord, error) {
	return s.trades, nil
}

func (s *fakeTradeSource) DeleteBefore(_ context.Context, _ time.Time) (int64, error) {
	s.deleted = int64(len(s.trades))
	return s.deleted, nil
}

type fakeRunSource struct {
	runs []domain.WorkflowRun
}

func (s *fakeRunSource) ListBefore(_ context.Context, _ time.Time, _ int) ([]domain.WorkflowRun, error) {
	return s.runs, nil
}

func TestArchiveTradesUploadsJSONLThenPrunes(t *testing.T) {
	writer := &fakeWriter{}
	trades := &fakeTradeSource{trades: []domain.TradeRecord{
		{ID: "t1", AgentID: "alpha", Venue: domain.VenuePolymarket, Quantity: decimal.NewFromInt(10)},
		{ID: "t2", AgentID: "beta", Venue: domain.VenueLimitless, Quantity: decimal.NewFromInt(3)},
	}}
	arch := NewArchiver(writer, trades, &fakeRunSource{}, slog.New(slog.DiscardHandler))

	cutoff := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	count, err := arch.ArchiveTrades(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(2), trades.deleted)

	body, ok := writer.puts["archive/trades/2026-07.jsonl"]
	require.True(t, ok, "expected monthly partitioned key, got %v", writer.puts)

	lines := bytes.Split(bytes.TrimSpace(body), []byte("\n"))
	require.Len(t, lines, 2)
	var first domain.TradeRecord
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "t1", first.ID)
}

func TestArchiveTradesEmptySkipsUpload(t *testing.T) {
	writer := &fakeWriter{}
	arch := NewArchiver(writer, &fakeTradeSource{}, &fakeRunSource{}, slog.New(slog.DiscardHandler))

	count, err := arch.ArchiveTrades(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, writer.puts)
}

func TestArchiveRunsDoesNotPrune(t *testing.T) {
	writer := &fakeWriter{}
	trades := &fakeTradeSource{}
	runs := &fakeRunSource{runs: []domain.WorkflowRun{
		{ID: "r1", AgentID: "alpha", Status: domain.RunStatusCompleted},
	}}
	arch := NewArchiver(writer, trades, runs, slog.New(slog.DiscardHandler))

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	count, err := arch.ArchiveRuns(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Zero(t, trades.deleted)
	assert.Contains(t, writer.puts, "archive/runs/2026-08.jsonl")
}
