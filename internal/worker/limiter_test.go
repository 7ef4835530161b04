package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_AllowWithinBurst(t *testing.T) {
	l := NewLimiter(1, 2)

	if !l.Allow("openai") {
		t.Error("Expected first call within burst to be allowed")
	}
	if !l.Allow("openai") {
		t.Error("Expected second call within burst to be allowed")
	}
	if l.Allow("openai") {
		t.Error("Expected third immediate call to be throttled")
	}
}

func TestLimiter_PerProviderIsolation(t *testing.T) {
	l := NewLimiter(1, 1)

	if !l.Allow("openai") {
		t.Fatal("Expected openai call to be allowed")
	}
	if !l.Allow("ollama") {
		t.Error("Expected ollama to have its own rate allowance")
	}
}

func TestLimiter_SetRate(t *testing.T) {
	l := NewLimiter(1, 1)
	l.SetRate("openai", 100, 10)

	for i := 0; i < 10; i++ {
		if !l.Allow("openai") {
			t.Fatalf("Expected custom burst of 10, throttled at call %d", i+1)
		}
	}
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	l := NewLimiter(0.01, 1) // ~one call per 100 seconds

	if !l.Allow("slow") {
		t.Fatal("Expected the first call to consume the burst")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Wait(ctx, "slow")
	if err == nil {
		t.Error("Expected Wait to fail when the context expires first")
	}
	if time.Since(start) > time.Second {
		t.Error("Expected Wait to return promptly on context expiry")
	}
}

func TestLimiter_BurstClamped(t *testing.T) {
	l := NewLimiter(1, 0)
	if !l.Allow("p") {
		t.Error("Expected zero burst to be clamped to one")
	}
}
