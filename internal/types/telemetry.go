package types

// Telemetry metric names for CloudWatch.
const (
	MetricDeliveryAttempt = "DeliveryAttempt"
	MetricQueueLag        = "ForwardingQueueLag"
	MetricQuotesCreated   = "QuotesCreated"
	MetricQuotesArchived  = "QuotesArchived"

	DimChannel = "Channel"
	DimResult  = "Result"

	MetricNamespace = "GreenQuote"
)
