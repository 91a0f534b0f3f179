// Package main is the entrypoint for the email forwarding worker Lambda.
//
// It consumes the email queue, renders each quote from the embedded
// templates and sends it through SES or SendGrid: a lead notification to the
// account and, when requested, an estimate to the customer. Once every copy
// is out, the quote's email_sent_at is stamped.
//
// With APP_ENV=local the worker reads a single SQS event from stdin instead
// of starting the Lambda runtime:
//
//	echo '{"Records":[{"messageId":"1","body":"{...}"}]}' | go run ./cmd/email-worker
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"greenquote/internal/config"
	"greenquote/internal/db"
	"greenquote/internal/external"
	"greenquote/internal/notifications/core"
	emailpkg "greenquote/internal/notifications/email"
	"greenquote/internal/types"
)

// EmailSentMarker stamps a quote once its emails are delivered.
type EmailSentMarker interface {
	MarkEmailSent(ctx context.Context, id string, at time.Time) error
}

// markEmailSent returns the post-delivery hook that stamps email_sent_at.
func markEmailSent(marker EmailSentMarker, clock types.Clock) core.DeliveredFunc {
	return func(ctx context.Context, msg *types.QuoteMessage, _ *types.DeliveryResult) error {
		return marker.MarkEmailSent(ctx, msg.Quote.ID, clock.Now())
	}
}

// newProvider picks the configured email backend.
func newProvider(cfg config.EmailConfig, ses external.SESAPI) external.EmailProvider {
	if cfg.Provider == "sendgrid" {
		base := external.NewBaseClient(nil, "sendgrid", external.DefaultRetryPolicy(), "GreenQuote-Email/1.0")
		return external.NewSendGridClient(base, cfg.SendGridAPIKey.Unmask(), "")
	}
	return external.NewSESClient(ses, cfg.ConfigurationSet)
}

// newWorker wires the email channel to the retry queue, metrics and, when
// marker is non-nil, the email_sent_at hook.
func newWorker(
	cfg *config.WorkerConfig,
	provider external.EmailProvider,
	sqsClient core.SQSSender,
	cw core.CloudWatchClient,
	marker EmailSentMarker,
	logger types.Logger,
) (*core.Worker, error) {
	renderer, err := emailpkg.NewRenderer()
	if err != nil {
		return nil, err
	}
	channel, err := emailpkg.NewChannel(emailpkg.ChannelConfig{
		Provider: provider,
		Renderer: renderer,
		From:     types.SenderIdentity{Name: cfg.Email.FromName, Address: cfg.Email.FromAddress},
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	var metrics core.ForwardingMetrics = core.NopMetrics{}
	if cfg.Observability.EnableMetrics && cw != nil {
		metrics = core.NewCloudWatchMetrics(cw, cfg.Observability.MetricNamespace, logger)
	}

	var opts []core.WorkerOption
	if marker != nil {
		opts = append(opts, core.WithOnDelivered(markEmailSent(marker, types.RealClock{})))
	}

	requeuer := core.NewQueuePublisher(sqsClient, cfg.QueueURL, logger)
	return core.NewWorker(channel, requeuer, metrics, logger, opts...), nil
}

func main() {
	ctx := context.Background()

	cfg, err := config.LoadWorkerConfig(config.NewSecretProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel)
	typedLogger := types.NewSlogLogger(logger)

	if cfg.QueueURL == "" {
		logger.Error("SQS_QUEUE_URL is required for retries")
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	var marker EmailSentMarker
	if cfg.DatabaseURL.Unmask() != "" {
		pool, err := db.NewPool(ctx, cfg.Database())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		marker = db.NewQuoteRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, email_sent_at will not be recorded")
	}

	provider := newProvider(cfg.Email, sesv2.NewFromConfig(awsCfg))
	worker, err := newWorker(cfg, provider, sqs.NewFromConfig(awsCfg), cloudwatch.NewFromConfig(awsCfg), marker, typedLogger)
	if err != nil {
		logger.Error("failed to create email worker", "error", err)
		os.Exit(1)
	}

	logger.Info("email worker initialized",
		"queue_url", cfg.QueueURL,
		"provider", cfg.Email.Provider,
		"from_address", cfg.Email.FromAddress,
	)

	if cfg.Environment == "local" {
		if err := runLocal(ctx, worker, os.Stdin, logger); err != nil {
			logger.Error("local run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(worker.Handle)
}

// runLocal feeds one SQS event read from r through the worker.
func runLocal(ctx context.Context, worker *core.Worker, r io.Reader, logger *slog.Logger) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	if len(payload) == 0 {
		return fmt.Errorf("no input received on stdin")
	}

	var event events.SQSEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("parsing SQS event: %w", err)
	}

	response, err := worker.Handle(ctx, event)
	if err != nil {
		return err
	}
	if len(response.BatchItemFailures) > 0 {
		out, _ := json.MarshalIndent(response, "", "  ")
		fmt.Fprintln(os.Stderr, string(out))
	}
	logger.Info("local run complete",
		"records", len(event.Records),
		"failures", len(response.BatchItemFailures),
	)
	return nil
}
