package messaging

import (
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: 5 * time.Second, Multiplier: 2}
	cases := map[int]time.Duration{0: time.Second, 1: 2 * time.Second, 2: 4 * time.Second, 3: 5 * time.Second, 10: 5 * time.Second}
	for n, want := range cases {
		if got := cfg.CalculateBackoff(n); got != want {
			t.Fatalf("CalculateBackoff(%d)=%v, want %v", n, got, want)
		}
	}
}

func TestArticleJobMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage("job-1", MessageTypeArticleGen, ArticleJobMessage{JobID: "job-1"})
	if err != nil {
		t.Fatalf("NewMessage() error: %v", err)
	}
	msg.SetMetadata("request_id", "req-1")

	var payload ArticleJobMessage
	if err := msg.UnmarshalPayload(&payload); err != nil {
		t.Fatalf("UnmarshalPayload() error: %v", err)
	}
	if payload.JobID != "job-1" || msg.GetMetadata("request_id") != "req-1" {
		t.Fatalf("payload=%+v metadata=%v", payload, msg.Metadata)
	}
	if StreamArticleGen.DLQStream() != "dlq:stream:article:gen" {
		t.Fatalf("dlq=%s", StreamArticleGen.DLQStream())
	}
}

func TestNewConsumerDefaults(t *testing.T) {
	c := NewConsumer(nil, ConsumerConfig{Stream: StreamArticleGen, Group: ConsumerGroupArticleWorker})
	if c.retryLimit != 3 || c.blockTimeout != 5*time.Second || c.backoff.Initial != time.Second {
		t.Fatalf("consumer=%+v", c)
	}
	if c.reclaimIdle < 15*time.Minute {
		t.Fatalf("reclaimIdle=%v", c.reclaimIdle)
	}
}
