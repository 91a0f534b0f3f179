// Package archive exports each account's quotes for a calendar month to S3
// as zstd-compressed JSON lines.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"greenquote/internal/types"
)

// ContentType is set on every exported object.
const ContentType = "application/zstd"

// QuoteSource streams the quotes created in [start, end), grouped by account.
type QuoteSource interface {
	ListCreatedBetween(ctx context.Context, start, end time.Time, fn func(*types.Quote) error) error
}

// S3API is the subset of the S3 client the exporter uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Counter records a count metric.
type Counter interface {
	RecordCount(ctx context.Context, metric string, value float64)
}

// Result summarizes one export run.
type Result struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Accounts    int       `json:"accounts"`
	Quotes      int       `json:"quotes"`
	Keys        []string  `json:"keys"`
}

// Exporter writes one object per account per month.
type Exporter struct {
	source  QuoteSource
	s3      S3API
	bucket  string
	metrics Counter
	logger  *slog.Logger
}

// NewExporter creates an Exporter. metrics may be nil.
func NewExporter(source QuoteSource, s3Client S3API, bucket string, metrics Counter, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		source:  source,
		s3:      s3Client,
		bucket:  bucket,
		metrics: metrics,
		logger:  logger,
	}
}

// PreviousMonth returns the UTC calendar month before the one containing now,
// as a half-open [start, end) window.
func PreviousMonth(now time.Time) (start, end time.Time) {
	now = now.UTC()
	end = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start = end.AddDate(0, -1, 0)
	return start, end
}

// ObjectKey is quotes/<account>/<yyyy>/<mm>.jsonl.zst for the month starting
// at periodStart.
func ObjectKey(accountID string, periodStart time.Time) string {
	return fmt.Sprintf("quotes/%s/%04d/%02d.jsonl.zst", accountID, periodStart.Year(), int(periodStart.Month()))
}

// accountBatch buffers one account's compressed export.
type accountBatch struct {
	accountID string
	buf       bytes.Buffer
	w         *Writer
}

// ExportPreviousMonth exports the month before now.
func (e *Exporter) ExportPreviousMonth(ctx context.Context, now time.Time) (*Result, error) {
	start, end := PreviousMonth(now)
	return e.Export(ctx, start, end)
}

// Export writes every quote created in [start, end). Accounts without quotes
// get no object. The run stops at the first failed upload; objects already
// written stay in place and are overwritten on the next run.
func (e *Exporter) Export(ctx context.Context, start, end time.Time) (*Result, error) {
	res := &Result{PeriodStart: start, PeriodEnd: end}
	var cur *accountBatch

	flush := func() error {
		if cur == nil {
			return nil
		}
		if err := cur.w.Close(); err != nil {
			return err
		}
		key := ObjectKey(cur.accountID, start)
		if err := e.put(ctx, key, cur.buf.Bytes()); err != nil {
			return err
		}
		e.logger.InfoContext(ctx, "quote archive written",
			"account_id", cur.accountID,
			"key", key,
			"quotes", cur.w.Count(),
			"bytes", cur.buf.Len(),
		)
		res.Accounts++
		res.Quotes += cur.w.Count()
		res.Keys = append(res.Keys, key)
		cur = nil
		return nil
	}

	err := e.source.ListCreatedBetween(ctx, start, end, func(q *types.Quote) error {
		if cur == nil || cur.accountID != q.AccountID {
			if err := flush(); err != nil {
				return err
			}
			cur = &accountBatch{accountID: q.AccountID}
			w, err := NewWriter(&cur.buf)
			if err != nil {
				return err
			}
			cur.w = w
		}
		return cur.w.Write(q)
	})
	if err != nil {
		return res, err
	}
	if err := flush(); err != nil {
		return res, err
	}

	if e.metrics != nil {
		e.metrics.RecordCount(ctx, types.MetricQuotesArchived, float64(res.Quotes))
	}
	e.logger.InfoContext(ctx, "quote archive complete",
		"period_start", start.Format(time.DateOnly),
		"accounts", res.Accounts,
		"quotes", res.Quotes,
	)
	return res, nil
}

func (e *Exporter) put(ctx context.Context, key string, body []byte) error {
	_, err := e.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(ContentType),
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamStorage, fmt.Sprintf("failed to upload %s", key), err)
	}
	return nil
}
