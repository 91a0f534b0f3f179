// Package main is the entry point for the GreenQuote API.
//
// It loads configuration, connects to PostgreSQL, wires the repositories,
// Stripe and the forwarding queues into the handlers, and serves the chi
// router built by internal/core.
//
// With APP_ENV=local it runs as a standard HTTP server on the configured
// port. Inside the Lambda runtime it serves the same router behind a
// function URL through aws-lambda-go's lambdaurl adapter.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambdaurl"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"greenquote/internal/api/handlers"
	"greenquote/internal/auth"
	"greenquote/internal/billing"
	"greenquote/internal/config"
	"greenquote/internal/core"
	"greenquote/internal/db"
	"greenquote/internal/external"
	notify "greenquote/internal/notifications/core"
	"greenquote/internal/security"
	"greenquote/internal/types"
)

// Database is what the API needs from the connection pool.
type Database interface {
	db.DBTX
	db.TxBeginner
}

// deps are the collaborators newServer cannot build from configuration
// alone.
type deps struct {
	DB        Database
	Forwarder handlers.QuoteForwarder
	// Billing defaults to the Stripe REST client.
	Billing external.BillingService
	Probes  []core.HealthProbe
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	var provider config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		provider = config.NewSecretProvider(os.Getenv("AWS_REGION"))
	}
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := config.NewLogger(cfg.LogLevel)
	logger.Info("greenquote API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		pool.Close()
		return fmt.Errorf("loading AWS SDK config: %w", err)
	}

	forwarder := newForwarder(cfg, sqsClient(awsCfg, cfg.AWS.EndpointURL), cloudwatch.NewFromConfig(awsCfg), logger)

	srv, err := newServer(cfg, deps{
		DB:        pool,
		Forwarder: forwarder,
		Probes: []core.HealthProbe{core.ProbeFunc{
			ProbeName: "database",
			Fn:        pool.Ping,
		}},
	}, logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.OnShutdown = append(srv.OnShutdown, func(context.Context) error {
		pool.Close()
		return nil
	})

	if isLambdaEnvironment() {
		logger.Info("starting lambda function URL handler")
		lambdaurl.Start(srv.Handler())
		return nil
	}
	return runHTTPServer(srv, cfg, logger)
}

// sqsClient honours AWS_ENDPOINT_URL so the queues can live in LocalStack.
func sqsClient(awsCfg aws.Config, endpoint string) *sqs.Client {
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// newForwarder publishes new quotes to the webhook and email queues.
func newForwarder(cfg *config.Config, sender notify.SQSSender, cw notify.CloudWatchClient, logger *slog.Logger) *notify.Dispatcher {
	typed := types.NewSlogLogger(logger)

	var metrics notify.ForwardingMetrics = notify.NopMetrics{}
	if cfg.Observability.EnableMetrics && cw != nil {
		metrics = notify.NewCloudWatchMetrics(cw, cfg.Observability.MetricNamespace, typed)
	}

	return notify.NewDispatcher(
		notify.NewQueuePublisher(sender, cfg.AWS.WebhookQueueURL, typed),
		notify.NewQueuePublisher(sender, cfg.AWS.EmailQueueURL, typed),
		metrics,
		typed,
	)
}

// newServer builds the repositories, services and handlers over d and mounts
// every route.
func newServer(cfg *config.Config, d deps, logger *slog.Logger) (*core.Server, error) {
	guard, err := security.NewGuard(nil)
	if err != nil {
		return nil, fmt.Errorf("creating ssrf guard: %w", err)
	}

	srv, err := core.NewServer(cfg, logger, guard.Validator())
	if err != nil {
		return nil, err
	}

	clock := types.RealClock{}
	hasher := auth.BcryptHasher{}
	accounts := db.NewAccountRepository(d.DB, logger)
	apiKeys := db.NewAPIKeyRepository(d.DB)
	settings := db.NewSettingsRepository(d.DB)
	quotes := db.NewQuoteRepository(d.DB)
	plans := billing.NewStaticPlanRegistry()
	usage := billing.NewUsageReporter(accounts, quotes, plans, clock)

	billingSvc := d.Billing
	if billingSvc == nil {
		base := external.NewBaseClient(nil, "stripe", external.DefaultRetryPolicy(), "GreenQuote-API/"+cfg.Build.Version)
		billingSvc = external.NewStripeClient(base, accounts, external.StripeClientConfig{
			SecretKey: cfg.Billing.StripeSecretKey.Unmask(),
			PriceIDs:  cfg.Billing.PriceIDs(),
			Logger:    logger,
		})
	}

	srv.Authenticator = auth.NewAuthenticator(apiKeys, hasher, logger)
	srv.RateLimitStore = core.NewMemoryRateLimitStore(clock)
	srv.HealthProbes = d.Probes

	accountHandler := handlers.NewAccountHandler(db.NewProvisioner(d.DB, logger), accounts, hasher, cfg.Pricing, clock, srv.Validator, logger)
	apiKeyHandler := handlers.NewAPIKeyHandler(apiKeys, hasher, clock, srv.Validator, logger)
	settingsHandler := handlers.NewSettingsHandler(settings, cfg.Pricing, srv.Validator, logger)
	quoteHandler := handlers.NewQuoteHandler(quotes, settings, accounts, usage, d.Forwarder, clock, srv.Validator, logger)
	billingHandler := handlers.NewBillingHandler(billingSvc, accounts, usage, cfg.Server.DashboardURL, clock, srv.Validator, logger)
	stripeHandler := handlers.NewStripeWebhookHandler(external.StripeVerifier{}, accounts, billingSvc, cfg.Billing.StripeWebhookSecret, logger)

	srv.PublicRouteRegistrars = append(srv.PublicRouteRegistrars,
		accountHandler.RegisterPublicRoutes,
		quoteHandler.RegisterPublicRoutes,
	)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		accountHandler.RegisterRoutes,
		apiKeyHandler.RegisterRoutes,
		settingsHandler.RegisterRoutes,
		quoteHandler.RegisterRoutes,
		billingHandler.RegisterRoutes,
	)
	srv.RootRouteRegistrars = append(srv.RootRouteRegistrars, stripeHandler.RegisterRoutes)

	srv.MountRoutes()
	return srv, nil
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
