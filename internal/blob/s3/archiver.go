package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// multipartThreshold is the payload size above which archives are uploaded in
// parts instead of a single Put.
const multipartThreshold = 8 << 20

// multipartPartSize is the part size for multipart uploads; S3 requires at
// least 5 MiB per part.
const multipartPartSize = 5 << 20

// ArchiveImpl implements domain.Archiver by querying the trade log for one
// calendar day of settled trades, serializing them to JSONL, and uploading
// the result to S3. Each upload is read back and its record count compared
// against what was written.
//
// The primary store keeps its rows; the archive is a redundant cold copy,
// not a migration.
type ArchiveImpl struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	trades domain.TradeLog
	audit  domain.AuditLog
}

// NewArchiver creates a new ArchiveImpl. reader may be nil, which disables
// the existence check and the post-upload verification.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, trades domain.TradeLog, audit domain.AuditLog) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		reader: reader,
		trades: trades,
		audit:  audit,
	}
}

// ArchiveTrades exports every trade of one variant settled on the given UTC
// calendar day to archive/trades/<mode>/YYYY-MM-DD.jsonl. A day whose archive
// object already exists is skipped, so the daily job is safe to re-run after
// a restart. The archival event is recorded in the audit log and the count of
// archived records is returned.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, mode domain.Mode, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	path := archivePath(mode, start)

	if a.reader != nil {
		exists, err := a.reader.Exists(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive trades exists check: %w", err)
		}
		if exists {
			return 0, nil
		}
	}

	trades, err := a.trades.ListSince(ctx, mode, start)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}

	var dayTrades []domain.SettledTrade
	for _, t := range trades {
		if t.SettledAt.Before(end) {
			dayTrades = append(dayTrades, t)
		}
	}
	if len(dayTrades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(dayTrades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), multipartPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	count := int64(len(dayTrades))

	if a.reader != nil {
		stored, err := a.countRecords(ctx, path)
		if err != nil {
			return count, fmt.Errorf("s3blob: archive trades verify: %w", err)
		}
		if stored != count {
			return count, fmt.Errorf("s3blob: archive trades verify %s: stored %d records, expected %d", path, stored, count)
		}
	}

	if err := a.audit.Log(ctx, "archive.trades", map[string]any{
		"path":  path,
		"mode":  string(mode),
		"count": count,
		"day":   start.Format("2006-01-02"),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive trades audit log: %w", err)
	}

	return count, nil
}

// countRecords reads an archive object back and counts its JSONL records.
func (a *ArchiveImpl) countRecords(ctx context.Context, path string) (int64, error) {
	body, err := a.reader.Get(ctx, path)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return 0, err
	}

	var count int64
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			count++
		}
	}
	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by variant
// and settlement day.
//
//	archive/trades/paper/2025-06-01.jsonl
func archivePath(mode domain.Mode, day time.Time) string {
	return fmt.Sprintf("archive/trades/%s/%s.jsonl", mode, day.Format("2006-01-02"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
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

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
