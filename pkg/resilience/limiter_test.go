package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/WessleyAI/journeyplanner/pkg/fn"
)

func double(_ context.Context, n int) fn.Result[int] { return fn.Ok(n * 2) }

func TestLimiterStage(t *testing.T) {
	stage := LimiterStage(NewLimiter(0.001, 2), double)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := stage(ctx, i).Unwrap(); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if _, err := stage(ctx, 3).Unwrap(); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestLimiterUnlimited(t *testing.T) {
	stage := LimiterStage(NewLimiter(0, 0), double)
	for i := 0; i < 100; i++ {
		if _, err := stage(context.Background(), i).Unwrap(); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
}

func TestLimiterStageWaitCancelled(t *testing.T) {
	stage := LimiterStageWait(NewLimiter(0.001, 1), double)
	if _, err := stage(context.Background(), 1).Unwrap(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := stage(ctx, 1).Unwrap(); err == nil {
		t.Fatal("expected wait to fail")
	}
}
