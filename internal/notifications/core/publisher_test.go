package core

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"greenquote/internal/types"
)

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123/webhook-forwarding"

func testMessage() types.QuoteMessage {
	return types.QuoteMessage{
		MessageID:   "msg_001",
		AccountID:   "acct_001",
		Channel:     types.ChannelWebhook,
		Destination: "https://hooks.example.com/quotes",
		AccountName: "Green Acres",
		Quote:       types.Quote{ID: "q_001", AccountID: "acct_001"},
		TraceID:     "trace_001",
	}
}

func TestQueuePublisher_Send_DoesNotIncrement(t *testing.T) {
	sender := &mockSQSSender{}
	pub := NewQueuePublisher(sender, testQueueURL, &mockLogger{})

	if err := pub.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sent types.QuoteMessage
	if err := json.Unmarshal([]byte(*sender.calls[0].MessageBody), &sent); err != nil {
		t.Fatalf("failed to unmarshal sent body: %v", err)
	}
	if sent.RetryCount != 0 {
		t.Errorf("expected RetryCount=0, got %d", sent.RetryCount)
	}
	if sender.calls[0].DelaySeconds != 0 {
		t.Errorf("expected no delay, got %d", sender.calls[0].DelaySeconds)
	}
	if *sender.calls[0].QueueUrl != testQueueURL {
		t.Errorf("expected QueueUrl=%q, got %q", testQueueURL, *sender.calls[0].QueueUrl)
	}
}

func TestQueuePublisher_Requeue_IncrementsRetryCount(t *testing.T) {
	sender := &mockSQSSender{}
	pub := NewQueuePublisher(sender, testQueueURL, &mockLogger{})

	msg := testMessage()
	msg.RetryCount = 2

	if err := pub.Requeue(context.Background(), msg, 25*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sent types.QuoteMessage
	if err := json.Unmarshal([]byte(*sender.calls[0].MessageBody), &sent); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if sent.RetryCount != 3 {
		t.Errorf("expected RetryCount=3, got %d", sent.RetryCount)
	}
	if msg.RetryCount != 2 {
		t.Errorf("original message RetryCount was mutated: got %d", msg.RetryCount)
	}
	if sender.calls[0].DelaySeconds != 25 {
		t.Errorf("expected DelaySeconds=25, got %d", sender.calls[0].DelaySeconds)
	}
	if sent.Quote.ID != "q_001" || sent.Destination != "https://hooks.example.com/quotes" {
		t.Errorf("message fields not preserved: %+v", sent)
	}
}

func TestQueuePublisher_Requeue_ClampsDelay(t *testing.T) {
	tests := []struct {
		name  string
		delay time.Duration
		want  int32
	}{
		{"over SQS maximum", 2000 * time.Second, 900},
		{"negative", -5 * time.Second, 0},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockSQSSender{}
			pub := NewQueuePublisher(sender, testQueueURL, &mockLogger{})

			if err := pub.Requeue(context.Background(), testMessage(), tt.delay); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sender.calls[0].DelaySeconds != tt.want {
				t.Errorf("expected DelaySeconds=%d, got %d", tt.want, sender.calls[0].DelaySeconds)
			}
		})
	}
}

func TestQueuePublisher_SQSError(t *testing.T) {
	sender := &mockSQSSender{returnErr: fmt.Errorf("SQS unavailable")}
	pub := NewQueuePublisher(sender, testQueueURL, &mockLogger{})

	if err := pub.Send(context.Background(), testMessage()); err == nil {
		t.Fatal("expected error for SQS failure")
	}
	if len(sender.calls) != 1 {
		t.Errorf("expected 1 SQS call attempt, got %d", len(sender.calls))
	}
}
