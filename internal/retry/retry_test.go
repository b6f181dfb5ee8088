package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func recordingPolicy(attempts int, base time.Duration, delays *[]time.Duration) Policy {
	return Policy{
		Attempts:    attempts,
		BackoffBase: base,
		sleep: func(ctx context.Context, d time.Duration) error {
			*delays = append(*delays, d)
			return nil
		},
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	var delays []time.Duration
	policy := recordingPolicy(3, time.Second, &delays)

	calls := 0
	result, err := Do(context.Background(), policy, "transcribe", func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected result 'ok', got %q", result)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if len(delays) != 0 {
		t.Errorf("expected no backoff delays, got %v", delays)
	}
}

func TestDoRetriesWithExponentialBackoff(t *testing.T) {
	var delays []time.Duration
	policy := recordingPolicy(3, time.Second, &delays)

	calls := 0
	result, err := Do(context.Background(), policy, "transcribe", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if result != 42 {
		t.Errorf("expected result 42, got %d", result)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}

	expected := []time.Duration{time.Second, 2 * time.Second}
	if len(delays) != len(expected) {
		t.Fatalf("expected %d delays, got %v", len(expected), delays)
	}
	for i, d := range expected {
		if delays[i] != d {
			t.Errorf("delay %d: expected %v, got %v", i, d, delays[i])
		}
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	policy := recordingPolicy(3, time.Second, &delays)

	cause := errors.New("service unavailable")
	calls := 0
	_, err := Do(context.Background(), policy, "merge summaries", func(ctx context.Context) (string, error) {
		calls++
		return "", cause
	})
	if err == nil {
		t.Fatal("expected error after exhausted attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "merge summaries") {
		t.Errorf("expected label in error, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "3 attempts") {
		t.Errorf("expected attempt count in error, got %q", err.Error())
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Do(ctx, Policy{Attempts: 5, BackoffBase: time.Millisecond}, "diarize", func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation stops retries, got %d", calls)
	}
}

func TestPolicyDefaults(t *testing.T) {
	var p Policy
	if p.attempts() != DefaultAttempts {
		t.Errorf("expected default attempts %d, got %d", DefaultAttempts, p.attempts())
	}
	if p.backoffBase() != DefaultBackoffBase {
		t.Errorf("expected default backoff %v, got %v", DefaultBackoffBase, p.backoffBase())
	}
}
