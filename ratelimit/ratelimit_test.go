package ratelimit

import "testing"

func TestAllow_PermitsWithinBurst(t *testing.T) {
	l := New(1, 3)
	for i := 0; i < 3; i++ {
		if !l.Allow("caller-a", "turn_on_light") {
			t.Fatalf("expected request %d within burst to be allowed", i)
		}
	}
}

func TestAllow_DeniesBeyondBurst(t *testing.T) {
	l := New(1, 2)
	l.Allow("caller-a", "turn_on_light")
	l.Allow("caller-a", "turn_on_light")
	if l.Allow("caller-a", "turn_on_light") {
		t.Fatal("expected the third immediate request to be denied")
	}
}

func TestAllow_IsolatedPerCallerEndpointPair(t *testing.T) {
	l := New(1, 1)
	if !l.Allow("caller-a", "turn_on_light") {
		t.Fatal("expected first caller's first request to be allowed")
	}
	if !l.Allow("caller-b", "turn_on_light") {
		t.Fatal("expected a different caller against the same endpoint to have its own bucket")
	}
	if !l.Allow("caller-a", "turn_off_light") {
		t.Fatal("expected the same caller against a different endpoint to have its own bucket")
	}
	if l.Allow("caller-a", "turn_on_light") {
		t.Fatal("expected caller-a's original bucket to still be exhausted")
	}
}

func TestReserve_ZeroWhenRoomAvailable(t *testing.T) {
	l := New(10, 5)
	if d := l.Reserve("caller-a", "turn_on_light"); d != 0 {
		t.Fatalf("expected zero wait with room in the bucket, got %v", d)
	}
}

func TestReserve_PositiveWhenExhausted(t *testing.T) {
	l := New(1, 1)
	l.Allow("caller-a", "turn_on_light")
	if d := l.Reserve("caller-a", "turn_on_light"); d <= 0 {
		t.Fatalf("expected a positive wait once the bucket is exhausted, got %v", d)
	}
}
