package checkin

import (
	"testing"
	"time"
)

func TestRemaining(t *testing.T) {
	now := time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		in   time.Duration
		want int
	}{
		{-5 * time.Second, 0},
		{0, 0},
		{time.Millisecond, 1},
		{time.Second, 1},
		{time.Second + time.Millisecond, 2},
		{120 * time.Second, 120},
	}
	for _, tc := range cases {
		if got := Remaining(now.Add(tc.in), now); got != tc.want {
			t.Errorf("Remaining(+%s) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestCountdownReachesZeroAndStops(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC))
	var ticks []int
	cd := NewCountdown(clock, clock.Now().Add(120*time.Second), func(left int) { ticks = append(ticks, left) })

	if first := cd.Start(); first != 120 {
		t.Fatalf("first = %d, want 120", first)
	}
	for i := 0; i < 130; i++ {
		clock.Advance(time.Second)
	}
	if len(ticks) != 120 {
		t.Fatalf("got %d ticks, want 120", len(ticks))
	}
	prev := 120
	for i, v := range ticks {
		if v > prev {
			t.Fatalf("tick %d increased: %d > %d", i, v, prev)
		}
		if v != prev-1 {
			t.Fatalf("tick %d = %d, want %d", i, v, prev-1)
		}
		prev = v
	}
	if ticks[len(ticks)-1] != 0 {
		t.Fatalf("last tick = %d", ticks[len(ticks)-1])
	}
	if clock.Pending() != 0 {
		t.Fatalf("countdown rescheduled after zero: %d pending", clock.Pending())
	}
	if !cd.Done() {
		t.Fatal("Done() = false after reaching zero")
	}
}

func TestCountdownAlreadyClosed(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC))
	cd := NewCountdown(clock, clock.Now().Add(-time.Minute), nil)
	if got := cd.Start(); got != 0 {
		t.Fatalf("Start = %d", got)
	}
	if clock.Pending() != 0 {
		t.Fatal("closed window must not schedule a tick")
	}
}

func TestCountdownStopCancelsPendingTick(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC))
	calls := 0
	cd := NewCountdown(clock, clock.Now().Add(time.Minute), func(int) { calls++ })
	cd.Start()
	clock.Advance(time.Second)
	cd.Stop()
	clock.Advance(10 * time.Second)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if clock.Pending() != 0 {
		t.Fatal("pending tick left after Stop")
	}
}
