package s3blob

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexsniper/sniperd/internal/domain"
)

// fakeBlob is an in-memory object store standing in for both blob ports.
type fakeBlob struct {
	objects  map[string][]byte
	types    map[string]string
	putErr   error
	dropPuts bool
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *fakeBlob) Put(_ context.Context, path string, data io.Reader, contentType string, size int64) error {
	if b.putErr != nil {
		return b.putErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if int64(len(raw)) != size {
		return fmt.Errorf("declared size %d, body %d", size, len(raw))
	}
	if !b.dropPuts {
		b.objects[path] = raw
		b.types[path] = contentType
	}
	return nil
}

func (b *fakeBlob) Get(_ context.Context, path string) (io.ReadCloser, error) {
	raw, ok := b.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (b *fakeBlob) Exists(_ context.Context, path string) (bool, error) {
	_, ok := b.objects[path]
	return ok, nil
}

var (
	_ domain.BlobWriter = (*fakeBlob)(nil)
	_ domain.BlobReader = (*fakeBlob)(nil)
)

type fakeQuoteJournal struct {
	rows      []domain.RouteQuote
	listErr   error
	deleted   []time.Time
	deleteErr error
}

func (j *fakeQuoteJournal) Insert(context.Context, domain.RouteQuote) error { return nil }

func (j *fakeQuoteJournal) ListRecent(context.Context, int) ([]domain.RouteQuote, error) {
	return nil, nil
}

func (j *fakeQuoteJournal) ListBefore(_ context.Context, cutoff time.Time, _ domain.ListOpts) ([]domain.RouteQuote, error) {
	if j.listErr != nil {
		return nil, j.listErr
	}
	var out []domain.RouteQuote
	for _, q := range j.rows {
		if q.CreatedAt.Before(cutoff) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (j *fakeQuoteJournal) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	if j.deleteErr != nil {
		return 0, j.deleteErr
	}
	j.deleted = append(j.deleted, cutoff)
	var n int64
	for _, q := range j.rows {
		if q.CreatedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

var _ domain.QuoteJournal = (*fakeQuoteJournal)(nil)

type fakeAssessmentJournal struct {
	rows    []domain.RiskAssessment
	deleted []time.Time
}

func (j *fakeAssessmentJournal) Insert(context.Context, domain.RiskAssessment) error { return nil }

func (j *fakeAssessmentJournal) ListRecent(context.Context, int) ([]domain.RiskAssessment, error) {
	return nil, nil
}

func (j *fakeAssessmentJournal) ListBefore(context.Context, time.Time, domain.ListOpts) ([]domain.RiskAssessment, error) {
	return j.rows, nil
}

func (j *fakeAssessmentJournal) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	j.deleted = append(j.deleted, cutoff)
	return int64(len(j.rows)), nil
}

var _ domain.AssessmentJournal = (*fakeAssessmentJournal)(nil)

type fakeSnipeArchiveJournal struct {
	rows    []domain.SnipeRecord
	deleted []time.Time
}

func (j *fakeSnipeArchiveJournal) Insert(context.Context, domain.SnipeRecord) error { return nil }

func (j *fakeSnipeArchiveJournal) ListRecent(context.Context, int) ([]domain.SnipeRecord, error) {
	return nil, nil
}

func (j *fakeSnipeArchiveJournal) ListBefore(context.Context, time.Time, domain.ListOpts) ([]domain.SnipeRecord, error) {
	return j.rows, nil
}

func (j *fakeSnipeArchiveJournal) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	j.deleted = append(j.deleted, cutoff)
	return int64(len(j.rows)), nil
}

var _ domain.SnipeJournal = (*fakeSnipeArchiveJournal)(nil)

var archiveCutoff = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func quoteRow(id string, createdAt time.Time) domain.RouteQuote {
	return domain.RouteQuote{
		ID:           id,
		InputAmount:  1.0,
		OutputAmount: 1800.0,
		CreatedAt:    createdAt,
	}
}

func newTestArchiver(prefix string, blob *fakeBlob, quotes *fakeQuoteJournal, risks *fakeAssessmentJournal, snipes *fakeSnipeArchiveJournal) *Archiver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewArchiver(prefix, blob, blob, quotes, risks, snipes, logger)
}

// gunzipLines splits an archived object back into its JSONL lines.
func gunzipLines(t *testing.T, raw []byte) []string {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer gz.Close()

	plain, err := io.ReadAll(gz)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(plain)), "\n")
}

func TestArchiveQuotesShipsAndDeletes(t *testing.T) {
	blob := newFakeBlob()
	quotes := &fakeQuoteJournal{rows: []domain.RouteQuote{
		quoteRow("q-1", archiveCutoff.Add(-14*24*time.Hour)),
		quoteRow("q-2", archiveCutoff.Add(-5*24*time.Hour)),
		quoteRow("q-3", archiveCutoff.Add(time.Hour)),
	}}
	a := newTestArchiver("cold", blob, quotes, &fakeAssessmentJournal{}, &fakeSnipeArchiveJournal{})

	count, err := a.ArchiveQuotes(context.Background(), archiveCutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "q-3 is newer than the cutoff")

	raw, ok := blob.objects["cold/quote_history/2025-06-15.jsonl.gz"]
	require.True(t, ok, "object keyed by prefix, table, and cutoff date")
	assert.Equal(t, "application/gzip", blob.types["cold/quote_history/2025-06-15.jsonl.gz"])

	lines := gunzipLines(t, raw)
	require.Len(t, lines, 2)
	var got domain.RouteQuote
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "q-1", got.ID)
	assert.Equal(t, 1800.0, got.OutputAmount)

	assert.Equal(t, []time.Time{archiveCutoff}, quotes.deleted)
}

func TestArchiveEmptyJournalSkipsUpload(t *testing.T) {
	blob := newFakeBlob()
	quotes := &fakeQuoteJournal{}
	a := newTestArchiver("", blob, quotes, &fakeAssessmentJournal{}, &fakeSnipeArchiveJournal{})

	count, err := a.ArchiveQuotes(context.Background(), archiveCutoff)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, blob.objects)
	assert.Empty(t, quotes.deleted)
}

func TestArchiveSameDateGetsSuffix(t *testing.T) {
	blob := newFakeBlob()
	earlier := []byte("earlier batch")
	blob.objects["archive/quote_history/2025-06-15.jsonl.gz"] = earlier

	quotes := &fakeQuoteJournal{rows: []domain.RouteQuote{
		quoteRow("q-9", archiveCutoff.Add(-time.Hour)),
	}}
	a := newTestArchiver("", blob, quotes, &fakeAssessmentJournal{}, &fakeSnipeArchiveJournal{})

	count, err := a.ArchiveQuotes(context.Background(), archiveCutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.Contains(t, blob.objects, "archive/quote_history/2025-06-15-2.jsonl.gz")
	assert.Equal(t, earlier, blob.objects["archive/quote_history/2025-06-15.jsonl.gz"],
		"a rerun must not clobber the earlier batch")
}

func TestArchiveVerifyBlocksDelete(t *testing.T) {
	blob := newFakeBlob()
	blob.dropPuts = true
	quotes := &fakeQuoteJournal{rows: []domain.RouteQuote{
		quoteRow("q-1", archiveCutoff.Add(-time.Hour)),
	}}
	a := newTestArchiver("", blob, quotes, &fakeAssessmentJournal{}, &fakeSnipeArchiveJournal{})

	_, err := a.ArchiveQuotes(context.Background(), archiveCutoff)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing after upload")
	assert.Empty(t, quotes.deleted, "rows survive when the object never landed")
}

func TestArchiveUploadErrorBlocksDelete(t *testing.T) {
	blob := newFakeBlob()
	blob.putErr = errors.New("access denied")
	quotes := &fakeQuoteJournal{rows: []domain.RouteQuote{
		quoteRow("q-1", archiveCutoff.Add(-time.Hour)),
	}}
	a := newTestArchiver("", blob, quotes, &fakeAssessmentJournal{}, &fakeSnipeArchiveJournal{})

	_, err := a.ArchiveQuotes(context.Background(), archiveCutoff)
	assert.ErrorContains(t, err, "access denied")
	assert.Empty(t, quotes.deleted)
}

func TestArchiveListFailureSkipsUpload(t *testing.T) {
	blob := newFakeBlob()
	quotes := &fakeQuoteJournal{listErr: errors.New("relation missing")}
	a := newTestArchiver("", blob, quotes, &fakeAssessmentJournal{}, &fakeSnipeArchiveJournal{})

	_, err := a.ArchiveQuotes(context.Background(), archiveCutoff)
	assert.ErrorContains(t, err, "relation missing")
	assert.Empty(t, blob.objects)
	assert.Empty(t, quotes.deleted)
}

func TestArchiveDeleteFailureSurfaces(t *testing.T) {
	blob := newFakeBlob()
	quotes := &fakeQuoteJournal{
		rows:      []domain.RouteQuote{quoteRow("q-1", archiveCutoff.Add(-time.Hour))},
		deleteErr: errors.New("deadlock detected"),
	}
	a := newTestArchiver("", blob, quotes, &fakeAssessmentJournal{}, &fakeSnipeArchiveJournal{})

	_, err := a.ArchiveQuotes(context.Background(), archiveCutoff)
	assert.ErrorContains(t, err, "delete rows")
	assert.Len(t, blob.objects, 1, "the object stays even when the delete fails")
}

func TestArchiveCoversAllJournals(t *testing.T) {
	blob := newFakeBlob()
	risks := &fakeAssessmentJournal{rows: []domain.RiskAssessment{
		{Network: "ethereum", Score: 7.5, Level: domain.RiskHigh, AssessedAt: archiveCutoff.Add(-time.Hour)},
	}}
	snipes := &fakeSnipeArchiveJournal{rows: []domain.SnipeRecord{
		{ID: "s-1", Network: "ethereum", Status: domain.SnipePlanned, CreatedAt: archiveCutoff.Add(-time.Hour)},
	}}
	a := newTestArchiver("", blob, &fakeQuoteJournal{}, risks, snipes)

	riskCount, err := a.ArchiveAssessments(context.Background(), archiveCutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), riskCount)

	snipeCount, err := a.ArchiveSnipes(context.Background(), archiveCutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snipeCount)

	assert.Contains(t, blob.objects, "archive/risk_history/2025-06-15.jsonl.gz")
	assert.Contains(t, blob.objects, "archive/snipe_history/2025-06-15.jsonl.gz")

	lines := gunzipLines(t, blob.objects["archive/snipe_history/2025-06-15.jsonl.gz"])
	require.Len(t, lines, 1)
	var rec domain.SnipeRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, domain.SnipePlanned, rec.Status)
}

func TestGzipJSONLRoundTrip(t *testing.T) {
	records := []domain.SnipeRecord{
		{ID: "a", Status: domain.SnipePlanned},
		{ID: "b", Status: domain.SnipeSkipped},
		{ID: "c", Status: domain.SnipeFailed},
	}

	payload, err := gzipJSONL(records)
	require.NoError(t, err)

	gz, err := gzip.NewReader(bytes.NewReader(payload))
	require.NoError(t, err)
	plain, err := io.ReadAll(gz)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(plain)), "\n")
	require.Len(t, lines, 3)
	for i, id := range []string{"a", "b", "c"} {
		var rec domain.SnipeRecord
		require.NoError(t, json.Unmarshal([]byte(lines[i]), &rec))
		assert.Equal(t, id, rec.ID)
	}
}
