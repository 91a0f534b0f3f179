// Package main is the entrypoint for the webhook forwarding worker Lambda.
//
// It consumes the webhook queue and POSTs each quote to the account's
// endpoint through an SSRF-guarded client. Slack, Discord and Teams URLs get
// their native message formats; anything else receives the signed JSON
// envelope. Retryable failures are re-published to the same queue with a
// delay.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"greenquote/internal/config"
	"greenquote/internal/notifications/core"
	"greenquote/internal/notifications/webhook"
	"greenquote/internal/security"
	"greenquote/internal/types"
)

// newWorker wires channel to the retry queue and metrics. cw may be nil, in
// which case metrics are discarded.
func newWorker(cfg *config.WorkerConfig, channel types.ForwardingChannel, sqsClient core.SQSSender, cw core.CloudWatchClient, logger types.Logger) *core.Worker {
	var metrics core.ForwardingMetrics = core.NopMetrics{}
	if cfg.Observability.EnableMetrics && cw != nil {
		metrics = core.NewCloudWatchMetrics(cw, cfg.Observability.MetricNamespace, logger)
	}
	requeuer := core.NewQueuePublisher(sqsClient, cfg.QueueURL, logger)
	return core.NewWorker(channel, requeuer, metrics, logger)
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

	guard, err := security.NewGuard(nil)
	if err != nil {
		logger.Error("failed to build SSRF guard", "error", err)
		os.Exit(1)
	}
	channel, err := webhook.NewChannel(cfg.Webhook, guard, typedLogger)
	if err != nil {
		logger.Error("failed to create webhook channel", "error", err)
		os.Exit(1)
	}

	worker := newWorker(cfg, channel, sqs.NewFromConfig(awsCfg), cloudwatch.NewFromConfig(awsCfg), typedLogger)

	logger.Info("webhook worker initialized",
		"queue_url", cfg.QueueURL,
		"user_agent", cfg.Webhook.UserAgent,
		"timeout", cfg.Webhook.DefaultTimeout.String(),
		"max_redirects", cfg.Webhook.MaxRedirects,
	)

	lambda.Start(worker.Handle)
}
