package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterUserLimit(t *testing.T) {
	rl := NewRateLimiter(3, 100, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.CheckUserLimit("user-1") {
			t.Fatalf("request %d blocked below the limit", i+1)
		}
	}
	if rl.CheckUserLimit("user-1") {
		t.Error("request above the limit allowed")
	}

	// Another user has an independent window.
	if !rl.CheckUserLimit("user-2") {
		t.Error("unrelated user blocked")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter(1, 100, 10*time.Millisecond)

	if !rl.CheckUserLimit("user-1") {
		t.Fatal("first request blocked")
	}
	if rl.CheckUserLimit("user-1") {
		t.Fatal("second request allowed inside the window")
	}

	time.Sleep(15 * time.Millisecond)
	if !rl.CheckUserLimit("user-1") {
		t.Error("request blocked after the window reset")
	}
}

func TestRateLimiterRemaining(t *testing.T) {
	rl := NewRateLimiter(5, 100, time.Minute)

	if got := rl.GetUserRemaining("user-1"); got != 5 {
		t.Errorf("remaining before any request = %d, want 5", got)
	}
	rl.CheckUserLimit("user-1")
	rl.CheckUserLimit("user-1")
	if got := rl.GetUserRemaining("user-1"); got != 3 {
		t.Errorf("remaining after two requests = %d, want 3", got)
	}

	rl.Reset()
	if got := rl.GetUserRemaining("user-1"); got != 5 {
		t.Errorf("remaining after reset = %d, want 5", got)
	}
}

func TestRateLimiterIPLimit(t *testing.T) {
	rl := NewRateLimiter(100, 2, time.Minute)

	if !rl.CheckIPLimit("10.0.0.1") || !rl.CheckIPLimit("10.0.0.1") {
		t.Fatal("requests below the IP limit blocked")
	}
	if rl.CheckIPLimit("10.0.0.1") {
		t.Error("request above the IP limit allowed")
	}
}
