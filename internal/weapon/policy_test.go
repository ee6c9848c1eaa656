package weapon

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.UnixMilli(1_700_000_000_000)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

// press builds a fresh press edge at ms.
func press(ms int) Trigger {
	return Trigger{Holding: true, NewPress: true, PressedAt: at(ms)}
}

func held() Trigger {
	return Trigger{Holding: true}
}

// TestCountedWindowAdmitsExactlyN tests the N shots per window guarantee
func TestCountedWindowAdmitsExactlyN(t *testing.T) {
	t.Parallel()

	p := NewPolicy(Pistol, Spec{Cadence: CountedWindow, Shots: 3, Window: time.Second})

	assert.Equal(t, Admitted, p.TryFire(at(0), press(0)))
	assert.Equal(t, Admitted, p.TryFire(at(300), press(300)))
	assert.Equal(t, Admitted, p.TryFire(at(600), press(600)))
	assert.Equal(t, RejectedCadence, p.TryFire(at(999), press(999)), "4th press within 999ms")

	assert.Equal(t, Admitted, p.TryFire(at(1001), press(1001)), "oldest shot left the window")
	assert.Equal(t, RejectedCadence, p.TryFire(at(1200), press(1200)))
	assert.Equal(t, Admitted, p.TryFire(at(1300), press(1300)))
	assert.Equal(t, 3, p.Shots(at(1300)))
}

// TestCountedWindowComparesNthBack tests that a single recent shot does not block
func TestCountedWindowComparesNthBack(t *testing.T) {
	t.Parallel()

	p := NewPolicy(Pistol, Spec{Cadence: CountedWindow, Shots: 3, Window: time.Second})

	// Three rapid shots, then a press right after the oldest expires while the
	// newest is only a few ms old.
	require.Equal(t, Admitted, p.TryFire(at(0), press(0)))
	require.Equal(t, Admitted, p.TryFire(at(990), press(990)))
	require.Equal(t, Admitted, p.TryFire(at(995), press(995)))
	assert.Equal(t, Admitted, p.TryFire(at(1000), press(1000)))
	assert.Equal(t, RejectedCadence, p.TryFire(at(1001), press(1001)))
}

// TestSlidingWindowInvariant fires at a high press rate and checks every window
func TestSlidingWindowInvariant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		spec    Spec
		limit   int
		horizon time.Duration
	}{
		{"single interval", Spec{Cadence: SingleInterval, MinInterval: time.Second}, 1, time.Second},
		{"counted window", Spec{Cadence: CountedWindow, Shots: 3, Window: time.Second}, 3, time.Second},
		{"counted window five", Spec{Cadence: CountedWindow, Shots: 5, Window: 500 * time.Millisecond}, 5, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := NewPolicy("test", tt.spec)
			var accepted []time.Time
			for ms := 0; ms < 10_000; ms += 7 {
				if p.TryFire(at(ms), press(ms)) == Admitted {
					accepted = append(accepted, at(ms))
				}
			}
			require.NotEmpty(t, accepted)

			for i := tt.limit; i < len(accepted); i++ {
				gap := accepted[i].Sub(accepted[i-tt.limit])
				assert.GreaterOrEqual(t, gap, tt.horizon,
					"shots %d and %d are inside one window", i-tt.limit, i)
			}
		})
	}
}

// TestSingleIntervalDropsExtraPresses tests that presses in the window are dropped, not queued
func TestSingleIntervalDropsExtraPresses(t *testing.T) {
	t.Parallel()

	p := NewPolicy(Shotgun, Spec{Cadence: SingleInterval, MinInterval: time.Second})

	assert.Equal(t, Admitted, p.TryFire(at(0), press(0)))
	for ms := 50; ms < 1000; ms += 50 {
		assert.Equal(t, RejectedCadence, p.TryFire(at(ms), press(ms)))
	}
	// No queued shot fires on its own once the interval passes.
	assert.Equal(t, RejectedIdle, p.TryFire(at(1000), Trigger{}))
	assert.Equal(t, Admitted, p.TryFire(at(1000), press(1000)))
}

// TestSustainedFiresWhileHeld tests unbounded shots spaced by the interval
func TestSustainedFiresWhileHeld(t *testing.T) {
	t.Parallel()

	p := NewPolicy(MachineGun, Spec{Cadence: Sustained, MinInterval: 100 * time.Millisecond})

	var accepted []time.Time
	for ms := 0; ms <= 5000; ms += 16 {
		if p.TryFire(at(ms), held()) == Admitted {
			accepted = append(accepted, at(ms))
		}
	}

	assert.Greater(t, len(accepted), 40, "a held trigger keeps firing")
	for i := 1; i < len(accepted); i++ {
		assert.GreaterOrEqual(t, accepted[i].Sub(accepted[i-1]), 100*time.Millisecond)
	}

	assert.Equal(t, RejectedIdle, p.TryFire(at(6000), Trigger{NewPress: true, PressedAt: at(6000)}),
		"sustained weapons need a held trigger")
}

// TestPressEdgeEvaluatedOnce tests that holding past an edge does not re-check it
func TestPressEdgeEvaluatedOnce(t *testing.T) {
	t.Parallel()

	p := NewPolicy(Pistol, Spec{Cadence: CountedWindow, Shots: 3, Window: time.Second})

	edge := press(0)
	assert.Equal(t, Admitted, p.TryFire(at(0), edge))
	assert.Equal(t, RejectedEdgeSeen, p.TryFire(at(16), edge))
	assert.Equal(t, RejectedEdgeSeen, p.TryFire(at(32), edge))
	assert.Equal(t, RejectedIdle, p.TryFire(at(48), held()), "holding is not a press")
	assert.Equal(t, 1, p.Shots(at(48)))

	assert.Equal(t, Admitted, p.TryFire(at(64), press(60)))
}

// TestRejectedEdgeIsConsumed tests that a rejected press is not retried later
func TestRejectedEdgeIsConsumed(t *testing.T) {
	t.Parallel()

	p := NewPolicy(Shotgun, Spec{Cadence: SingleInterval, MinInterval: time.Second})

	require.Equal(t, Admitted, p.TryFire(at(0), press(0)))
	edge := press(500)
	require.Equal(t, RejectedCadence, p.TryFire(at(500), edge))
	assert.Equal(t, RejectedEdgeSeen, p.TryFire(at(1500), edge))
}

func TestClockRegressionRejected(t *testing.T) {
	t.Parallel()

	p := NewPolicy(MachineGun, Spec{Cadence: Sustained, MinInterval: 100 * time.Millisecond})
	require.Equal(t, Admitted, p.TryFire(at(1000), held()))
	assert.Equal(t, RejectedClock, p.TryFire(at(500), held()))
}

// TestFireWindowBounded tests the window never grows past its cap
func TestFireWindowBounded(t *testing.T) {
	t.Parallel()

	w := NewFireWindow(3, time.Second)
	for ms := 0; ms < 100; ms++ {
		w.Record(at(ms))
		assert.LessOrEqual(t, w.Len(), 3)
	}

	last, ok := w.Last()
	require.True(t, ok)
	assert.Equal(t, at(99), last)

	w.Prune(at(1098))
	assert.Equal(t, 1, w.Len())

	w.Reset()
	_, ok = w.Last()
	assert.False(t, ok)
	assert.True(t, w.Admits(at(0)))
}

func TestResultString(t *testing.T) {
	t.Parallel()

	assert.True(t, Admitted.OK())
	assert.False(t, RejectedCadence.OK())
	assert.Equal(t, "cadence", RejectedCadence.String())
	assert.Equal(t, "unknown", Result(99).String())
}

// TestCatalog tests the built-in weapon limits
func TestCatalog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind    Kind
		cadence Cadence
	}{
		{Pistol, CountedWindow},
		{Shotgun, SingleInterval},
		{MachineGun, Sustained},
		{RocketLauncher, SingleInterval},
		{Laser, Sustained},
	}
	for _, tt := range tests {
		tt := tt
		spec, ok := Lookup(tt.kind)
		require.True(t, ok, tt.kind)
		assert.Equal(t, tt.cadence, spec.Cadence, tt.kind)
	}

	assert.Equal(t, Shotgun, Resolve("shotgun"))
	assert.Equal(t, Pistol, Resolve("banana"))
	assert.Equal(t, Pistol, Resolve(""))
}

// TestControllerSwitchDiscardsHistory tests that shot history does not carry over
func TestControllerSwitchDiscardsHistory(t *testing.T) {
	t.Parallel()

	c := NewController(Shotgun, zerolog.Nop())
	require.Equal(t, Shotgun, c.Kind())
	require.Equal(t, Admitted, c.TryFire(at(0), press(0)))
	require.Equal(t, RejectedCadence, c.TryFire(at(100), press(100)))

	c.Switch(Shotgun)
	assert.Equal(t, Admitted, c.TryFire(at(200), press(200)), "fresh window after switch")

	c.Switch(MachineGun)
	assert.Equal(t, MachineGun, c.Kind())
	assert.Equal(t, Admitted, c.TryFire(at(210), held()))

	c.Switch("banana")
	assert.Equal(t, Pistol, c.Kind())
}
