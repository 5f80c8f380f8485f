package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTryAcquireWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New(3, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.TryAcquire() {
			t.Fatalf("acquisition %d should be permitted", i+1)
		}
	}
	if l.TryAcquire() {
		t.Fatal("4th acquisition inside the window should be denied")
	}

	// Still inside the trailing window.
	now = now.Add(59 * time.Second)
	if l.TryAcquire() {
		t.Fatal("acquisition at 59s should still be denied")
	}

	// The oldest timestamp ages out.
	now = now.Add(2 * time.Second)
	if !l.TryAcquire() {
		t.Fatal("acquisition after window elapsed should be permitted")
	}
}

func TestTryAcquireNeverExceedsLimit(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(5, 10*time.Second)
	l.now = func() time.Time { return now }

	// Issue acquisitions at a steady pace and verify the invariant: no more
	// than 5 permits inside any trailing 10 seconds.
	granted := make([]time.Time, 0, 64)
	for i := 0; i < 100; i++ {
		if l.TryAcquire() {
			granted = append(granted, now)
		}
		now = now.Add(500 * time.Millisecond)
	}

	for i := range granted {
		inWindow := 0
		for j := 0; j <= i; j++ {
			if granted[i].Sub(granted[j]) < 10*time.Second {
				inWindow++
			}
		}
		if inWindow > 5 {
			t.Fatalf("window ending at %v holds %d permits", granted[i], inWindow)
		}
	}
}

func TestAcquireWaitsForOldestToExpire(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(2, time.Minute)
	l.now = func() time.Time { return now }

	var waits []time.Duration
	l.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		now = now.Add(d)
		return nil
	}

	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	now = now.Add(10 * time.Second)
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire 2: %v", err)
	}

	// Window full; the third acquire must wait until the first timestamp
	// leaves the window: 60s - 10s elapsed = 50s.
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire 3: %v", err)
	}

	want := []time.Duration{50 * time.Second}
	if diff := cmp.Diff(want, waits); diff != "" {
		t.Errorf("waits mismatch (-want +got):\n%s", diff)
	}
}

func TestAcquireCancelled(t *testing.T) {
	l := New(1, time.Minute)
	if !l.TryAcquire() {
		t.Fatal("first acquisition should be permitted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Acquire(ctx); err == nil {
		t.Fatal("expected context error, got nil")
	}
}
