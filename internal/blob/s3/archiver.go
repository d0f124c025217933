package s3blob

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dexsniper/sniperd/internal/domain"
)

// defaultPrefix is the key prefix used when the archiver is built with an
// empty one.
const defaultPrefix = "archive"

// Archiver implements domain.Archiver: journal rows older than a cutoff are
// uploaded to object storage as gzip JSONL, verified, and only then deleted
// from the database. Keys are <prefix>/<table>/<date>.jsonl.gz; a second run
// on the same date gets a numbered suffix so it cannot clobber the earlier
// batch.
type Archiver struct {
	prefix string
	writer domain.BlobWriter
	reader domain.BlobReader
	quotes domain.QuoteJournal
	risks  domain.AssessmentJournal
	snipes domain.SnipeJournal
	logger *slog.Logger
}

// NewArchiver creates an Archiver over the given blob store and journals.
func NewArchiver(prefix string, writer domain.BlobWriter, reader domain.BlobReader, quotes domain.QuoteJournal, risks domain.AssessmentJournal, snipes domain.SnipeJournal, logger *slog.Logger) *Archiver {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Archiver{
		prefix: prefix,
		writer: writer,
		reader: reader,
		quotes: quotes,
		risks:  risks,
		snipes: snipes,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

var _ domain.Archiver = (*Archiver)(nil)

// ArchiveQuotes archives quote_history rows created before the cutoff and
// returns the number of rows shipped.
func (a *Archiver) ArchiveQuotes(ctx context.Context, before time.Time) (int64, error) {
	return archiveRows(ctx, a, "quote_history", before, a.quotes.ListBefore, a.quotes.DeleteBefore)
}

// ArchiveAssessments archives risk_history rows assessed before the cutoff
// and returns the number of rows shipped.
func (a *Archiver) ArchiveAssessments(ctx context.Context, before time.Time) (int64, error) {
	return archiveRows(ctx, a, "risk_history", before, a.risks.ListBefore, a.risks.DeleteBefore)
}

// ArchiveSnipes archives snipe_history rows recorded before the cutoff and
// returns the number of rows shipped.
func (a *Archiver) ArchiveSnipes(ctx context.Context, before time.Time) (int64, error) {
	return archiveRows(ctx, a, "snipe_history", before, a.snipes.ListBefore, a.snipes.DeleteBefore)
}

// archiveRows is the shared list -> encode -> upload -> verify -> delete
// flow. Rows are deleted only after the uploaded object is confirmed
// readable.
func archiveRows[T any](
	ctx context.Context,
	a *Archiver,
	table string,
	before time.Time,
	list func(context.Context, time.Time, domain.ListOpts) ([]T, error),
	del func(context.Context, time.Time) (int64, error),
) (int64, error) {
	rows, err := list(ctx, before, domain.ListOpts{})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: list: %w", table, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	payload, err := gzipJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: encode: %w", table, err)
	}

	key, err := a.freeKey(ctx, table, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", table, err)
	}

	err = a.writer.Put(ctx, key, bytes.NewReader(payload), "application/gzip", int64(len(payload)))
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: upload: %w", table, err)
	}

	landed, err := a.reader.Exists(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: verify: %w", table, err)
	}
	if !landed {
		return 0, fmt.Errorf("s3blob: archive %s: object %s missing after upload", table, key)
	}

	deleted, err := del(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: delete rows: %w", table, err)
	}

	count := int64(len(rows))
	log := a.logger.With(slog.String("table", table))
	log.InfoContext(ctx, "journal archived",
		slog.String("key", key),
		slog.Int64("rows", count),
		slog.Int64("deleted", deleted))
	if deleted != count {
		log.WarnContext(ctx, "archived and deleted row counts differ",
			slog.Int64("rows", count),
			slog.Int64("deleted", deleted))
	}
	return count, nil
}

// freeKey returns the first unused object key for the table and cutoff date.
func (a *Archiver) freeKey(ctx context.Context, table string, before time.Time) (string, error) {
	base := fmt.Sprintf("%s/%s/%s", a.prefix, table, before.Format("2006-01-02"))

	key := base + ".jsonl.gz"
	for n := 2; ; n++ {
		exists, err := a.reader.Exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("probe %s: %w", key, err)
		}
		if !exists {
			return key, nil
		}
		if n > 1000 {
			return "", fmt.Errorf("no free key under %s", base)
		}
		key = fmt.Sprintf("%s-%d.jsonl.gz", base, n)
	}
}

// gzipJSONL encodes records as newline-delimited JSON inside a gzip stream.
func gzipJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("close gzip stream: %w", err)
	}
	return buf.Bytes(), nil
}
