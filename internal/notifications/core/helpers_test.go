package core

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"greenquote/internal/types"
)

type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockLogger) record(level, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, level+":"+msg)
}

func (m *mockLogger) Info(msg string, _ ...any)  { m.record("info", msg) }
func (m *mockLogger) Error(msg string, _ ...any) { m.record("error", msg) }
func (m *mockLogger) Warn(msg string, _ ...any)  { m.record("warn", msg) }
func (m *mockLogger) With(_ ...any) types.Logger { return m }

// mockSQSSender records all SendMessage calls for verification.
type mockSQSSender struct {
	calls     []*sqs.SendMessageInput
	returnErr error
}

func (m *mockSQSSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &sqs.SendMessageOutput{}, nil
}

type deliveryRecord struct {
	channel types.ChannelType
	result  MetricResult
}

type recordingMetrics struct {
	mu         sync.Mutex
	deliveries []deliveryRecord
	lags       []time.Duration
	counts     map[string]float64
}

func (m *recordingMetrics) RecordDelivery(_ context.Context, channel types.ChannelType, result MetricResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, deliveryRecord{channel, result})
}

func (m *recordingMetrics) RecordLatency(context.Context, types.ChannelType, time.Duration) {}

func (m *recordingMetrics) RecordQueueLag(_ context.Context, lag time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lags = append(m.lags, lag)
}

func (m *recordingMetrics) RecordCount(_ context.Context, metric string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]float64{}
	}
	m.counts[metric] += value
}

func (m *recordingMetrics) results() []MetricResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MetricResult, 0, len(m.deliveries))
	for _, d := range m.deliveries {
		out = append(out, d.result)
	}
	return out
}

type mockSender struct {
	mu   sync.Mutex
	sent []types.QuoteMessage
	err  error
}

func (m *mockSender) Send(_ context.Context, msg types.QuoteMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type requeueCall struct {
	msg   types.QuoteMessage
	delay time.Duration
}

type mockRequeuer struct {
	calls []requeueCall
	err   error
}

func (m *mockRequeuer) Requeue(_ context.Context, msg types.QuoteMessage, delay time.Duration) error {
	m.calls = append(m.calls, requeueCall{msg, delay})
	return m.err
}

type mockChannel struct {
	channelType   types.ChannelType
	FormatFunc    func(ctx context.Context, msg *types.QuoteMessage) ([]byte, error)
	DeliverFunc   func(ctx context.Context, msg *types.QuoteMessage, payload []byte) (*types.DeliveryResult, error)
	retryable     bool
	deliverCalled int
}

func (m *mockChannel) Type() types.ChannelType { return m.channelType }

func (m *mockChannel) Format(ctx context.Context, msg *types.QuoteMessage) ([]byte, error) {
	if m.FormatFunc != nil {
		return m.FormatFunc(ctx, msg)
	}
	return []byte(`{"ok":true}`), nil
}

func (m *mockChannel) Deliver(ctx context.Context, msg *types.QuoteMessage, payload []byte) (*types.DeliveryResult, error) {
	m.deliverCalled++
	if m.DeliverFunc != nil {
		return m.DeliverFunc(ctx, msg, payload)
	}
	return &types.DeliveryResult{Status: types.DeliveryStatusSent, ProviderMessageID: "prov_1"}, nil
}

func (m *mockChannel) ShouldRetry(error) bool { return m.retryable }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
