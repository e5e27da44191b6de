package memory

import (
	"context"
	"testing"
	"time"
)

func TestRateCounterWindow(t *testing.T) {
	t.Parallel()
	c := NewRateCounter()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := c.IncrementCounter(ctx, "otp_issue:9876500001", time.Minute)
		if err != nil || got != want {
			t.Fatalf("Expected count %d, got %d (%v)", want, got, err)
		}
	}
	if got, _ := c.IncrementCounter(ctx, "otp_issue:9876500002", time.Minute); got != 1 {
		t.Errorf("Expected independent key to start at 1, got %d", got)
	}

	now = now.Add(time.Minute)
	if got, _ := c.IncrementCounter(ctx, "otp_issue:9876500001", time.Minute); got != 1 {
		t.Errorf("Expected window reset, got %d", got)
	}
}
