package timectrl

import (
	"context"
	"testing"
	"time"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerStartUpdatesNow(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	var ticks int
	var total time.Duration
	tc.AddListener(func(_ time.Time, dt time.Duration) {
		ticks++
		total += dt
	})

	done := tc.Start(context.Background(), 15*time.Millisecond)
	<-done

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if ticks != 3 || total != 15*time.Millisecond {
		t.Fatalf("listener saw %d ticks totalling %v, want 3 and 15ms", ticks, total)
	}
}

func TestTimeControllerStep(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second/60, RealTime)

	var seen []time.Time
	tc.AddListener(func(now time.Time, _ time.Duration) { seen = append(seen, now) })

	tc.Step()
	tc.Step()
	if len(seen) != 2 || !seen[1].Equal(start.Add(2*tc.Tick)) {
		t.Fatalf("Step listener times = %v", seen)
	}
}

func TestTimeControllerStopsOnCancel(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Millisecond, RealTime)

	ctx, cancel := context.WithCancel(context.Background())
	done := tc.Start(ctx, 0)
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("controller did not stop after cancel")
	}
	if !tc.Now().After(start) {
		t.Fatalf("real-time controller never advanced")
	}
}

func TestNewTimeControllerDefaultsTick(t *testing.T) {
	tc := NewTimeController(time.Time{}, 0, Accelerated)
	if tc.Tick != time.Second/60 {
		t.Fatalf("Tick = %v, want 1/60s", tc.Tick)
	}
}
