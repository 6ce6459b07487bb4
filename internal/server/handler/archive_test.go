package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

type fakeBlobReader struct {
	objects    map[string][]byte
	lastPrefix string
}

func (f *fakeBlobReader) Get(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := f.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlobReader) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	f.lastPrefix = prefix
	infos := make([]domain.BlobInfo, 0, len(f.objects))
	for path, data := range f.objects {
		infos = append(infos, domain.BlobInfo{
			Path:         path,
			Size:         int64(len(data)),
			LastModified: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	return infos, nil
}

func newArchiveHandler(reader domain.BlobReader) *ArchiveHandler {
	return NewArchiveHandler(reader, slog.New(slog.DiscardHandler))
}

func TestArchiveListScopesToArchivePrefix(t *testing.T) {
	reader := &fakeBlobReader{objects: map[string][]byte{
		"archive/trades/2026-07.jsonl": []byte("{}\n"),
	}}
	h := newArchiveHandler(reader)

	req := httptest.NewRequest(http.MethodGet, "/api/archives?prefix=../secrets", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "archive/secrets", reader.lastPrefix)

	var resp struct {
		Objects []archiveObjectView `json:"objects"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Objects, 1)
	assert.Equal(t, "archive/trades/2026-07.jsonl", resp.Objects[0].Path)
	assert.Equal(t, int64(3), resp.Objects[0].Size)
}

func TestArchiveDownloadStreamsObject(t *testing.T) {
	reader := &fakeBlobReader{objects: map[string][]byte{
		"archive/trades/2026-07.jsonl": []byte(`{"id":"t1"}` + "\n"),
	}}
	h := newArchiveHandler(reader)

	req := httptest.NewRequest(http.MethodGet, "/api/archives/trades/2026-07.jsonl", nil)
	req.SetPathValue("path", "trades/2026-07.jsonl")
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"t1"`)
}

func TestArchiveDownloadUnknownObjectReturns404(t *testing.T) {
	h := newArchiveHandler(&fakeBlobReader{objects: map[string][]byte{}})

	req := httptest.NewRequest(http.MethodGet, "/api/archives/runs/2020-01.jsonl", nil)
	req.SetPathValue("path", "runs/2020-01.jsonl")
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
