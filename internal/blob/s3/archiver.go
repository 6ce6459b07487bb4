package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

// archiveBatch bounds how many rows one archival pass pulls from the
// database at a time.
const archiveBatch = 5000

// multipartThreshold is the payload size above which uploads switch to
// the multipart path.
const multipartThreshold = 8 * 1024 * 1024

// multipartWriter is satisfied by blob writers that support multipart
// uploads for large payloads.
type multipartWriter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// TradeArchiveSource provides read-and-prune access to aged trades.
// *postgres.TradeStore satisfies it.
type TradeArchiveSource interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.TradeRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// RunArchiveSource provides read access to aged terminal workflow runs.
// *postgres.WorkflowStore satisfies it. Runs are kept in the database
// after archival; only trades are pruned.
type RunArchiveSource interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.WorkflowRun, error)
}

// Archiver implements domain.Archiver: aged trade records and finished
// workflow runs are serialized to JSONL and uploaded to object storage,
// partitioned by the cutoff month. Trades are deleted from the primary
// store only after the upload has succeeded.
type Archiver struct {
	writer domain.BlobWriter
	trades TradeArchiveSource
	runs   RunArchiveSource
	logger *slog.Logger
}

// NewArchiver creates an Archiver over the given blob writer and sources.
func NewArchiver(writer domain.BlobWriter, trades TradeArchiveSource, runs RunArchiveSource, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		trades: trades,
		runs:   runs,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveTrades uploads all trades created before the cutoff to
// archive/trades/YYYY-MM.jsonl and then prunes them from the database.
// Returns the number of records archived.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before, archiveBatch)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	deleted, err := a.trades.DeleteBefore(ctx, before)
	if err != nil {
		// The upload is durable; a failed prune just leaves rows for the
		// next pass.
		a.logger.Warn("prune archived trades", slog.Any("error", err))
	}

	count := int64(len(trades))
	a.logger.Info("trades archived",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.Int64("pruned", deleted))
	return count, nil
}

// ArchiveRuns uploads terminal workflow runs started before the cutoff to
// archive/runs/YYYY-MM.jsonl. Returns the number of records archived.
func (a *Archiver) ArchiveRuns(ctx context.Context, before time.Time) (int64, error) {
	runs, err := a.runs.ListBefore(ctx, before, archiveBatch)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive runs query: %w", err)
	}
	if len(runs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(runs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive runs marshal: %w", err)
	}

	path := archivePath("runs", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive runs upload: %w", err)
	}

	count := int64(len(runs))
	a.logger.Info("runs archived",
		slog.String("path", path),
		slog.Int64("count", count))
	return count, nil
}

// upload writes the payload through the writer, switching to multipart
// when the payload is large and the writer supports it.
func (a *Archiver) upload(ctx context.Context, path string, buf []byte) error {
	if mw, ok := a.writer.(multipartWriter); ok && int64(len(buf)) > multipartThreshold {
		return mw.PutMultipart(ctx, path, bytes.NewReader(buf), multipartThreshold)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// archivePath builds the object key, partitioned by the cutoff's
// year-month, e.g. archive/trades/2026-08.jsonl.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
