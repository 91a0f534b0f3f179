package config

import "time"

// WorkerConfig is the configuration for the Lambda workers. Each binary
// checks the optional fields it depends on at startup.
type WorkerConfig struct {
	Environment string `envconfig:"APP_ENV" default:"prod" validate:"oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// QueueURL is the queue retries are re-published to. Forwarding
	// workers consume from it.
	QueueURL    string       `envconfig:"SQS_QUEUE_URL" validate:"omitempty,url"`
	DatabaseURL SecretString `envconfig:"DATABASE_URL"`

	ArchiveBucket string `envconfig:"ARCHIVE_BUCKET"`
	Region        string `envconfig:"AWS_REGION" default:"us-east-1"`

	Webhook       WebhookConfig
	Email         EmailConfig
	Observability ObservabilityConfig
}

// Database returns pool settings for a single Lambda instance, which handles
// one batch at a time and needs few connections.
func (c *WorkerConfig) Database() DatabaseConfig {
	return DatabaseConfig{
		URL:               c.DatabaseURL,
		MaxConns:          2,
		MinConns:          0,
		MaxConnLifetime:   30 * time.Minute,
		AcquireTimeout:    5 * time.Second,
		HealthCheckPeriod: time.Minute,
	}
}
