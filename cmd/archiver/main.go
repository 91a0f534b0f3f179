// Package main is the entrypoint for the quote archiver Lambda.
//
// An EventBridge schedule invokes it early each month. The handler exports
// every quote created in the previous calendar month to S3, one
// zstd-compressed JSON-lines object per account under
// quotes/<account>/<yyyy>/<mm>.jsonl.zst. Invoking it with
// {"month":"2026-03"} re-exports a specific month; objects are overwritten,
// so reruns are safe.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"greenquote/internal/archive"
	"greenquote/internal/config"
	"greenquote/internal/db"
	"greenquote/internal/notifications/core"
	"greenquote/internal/types"
)

const monthLayout = "2006-01"

// ArchivePayload is the EventBridge input. Both fields are optional.
type ArchivePayload struct {
	// ReferenceTime picks the month before it. Defaults to now.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
	// Month ("2006-01") exports that month and wins over ReferenceTime.
	Month string `json:"month,omitempty"`
}

// MonthExporter is the subset of archive.Exporter the handler calls.
type MonthExporter interface {
	ExportPreviousMonth(ctx context.Context, now time.Time) (*archive.Result, error)
	Export(ctx context.Context, start, end time.Time) (*archive.Result, error)
}

// Handler holds the dependencies for the archiver Lambda handler function.
type Handler struct {
	Exporter MonthExporter
	Clock    types.Clock
	Logger   *slog.Logger
}

// Handle runs one export and returns a short summary for the invocation log.
func (h *Handler) Handle(ctx context.Context, payload ArchivePayload) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := h.Clock
	if clock == nil {
		clock = types.RealClock{}
	}

	var (
		result *archive.Result
		err    error
	)
	switch {
	case payload.Month != "":
		start, perr := time.Parse(monthLayout, payload.Month)
		if perr != nil {
			return "", fmt.Errorf("invalid month %q: want YYYY-MM", payload.Month)
		}
		logger.InfoContext(ctx, "archiver invoked", "month", payload.Month)
		result, err = h.Exporter.Export(ctx, start, start.AddDate(0, 1, 0))
	default:
		now := clock.Now().UTC()
		if payload.ReferenceTime != nil {
			now = payload.ReferenceTime.UTC()
		}
		logger.InfoContext(ctx, "archiver invoked", "reference_time", now.Format(time.RFC3339))
		result, err = h.Exporter.ExportPreviousMonth(ctx, now)
	}
	if err != nil {
		logger.ErrorContext(ctx, "quote export failed", "error", err)
		return "", fmt.Errorf("exporting quotes: %w", err)
	}

	summary := fmt.Sprintf("archived %d quotes for %d accounts (%s)",
		result.Quotes, result.Accounts, result.PeriodStart.Format(monthLayout))
	logger.InfoContext(ctx, summary,
		"quotes", result.Quotes,
		"accounts", result.Accounts,
		"objects", len(result.Keys),
	)
	return summary, nil
}

func main() {
	ctx := context.Background()

	cfg, err := config.LoadWorkerConfig(config.NewSecretProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel)

	if cfg.ArchiveBucket == "" || cfg.DatabaseURL.Unmask() == "" {
		logger.Error("ARCHIVE_BUCKET and DATABASE_URL are required")
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.Database())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	var metrics archive.Counter
	if cfg.Observability.EnableMetrics {
		metrics = core.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, types.NewSlogLogger(logger))
	}

	handler := &Handler{
		Exporter: archive.NewExporter(db.NewQuoteRepository(pool), s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, metrics, logger),
		Logger:   logger,
	}

	logger.Info("archiver initialized", "bucket", cfg.ArchiveBucket)
	lambda.Start(handler.Handle)
}
