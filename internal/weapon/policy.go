// Package weapon gates weapon fire on the client so that the shot cadence
// never exceeds what the server will accept. It never sends anything itself.
package weapon

import "time"

// Trigger is the input state sampled for one fire attempt.
//
// PressedAt identifies a press edge: a NewPress trigger whose PressedAt was
// already evaluated is not evaluated again. A zero PressedAt makes every
// NewPress trigger its own edge.
type Trigger struct {
	Holding   bool
	NewPress  bool
	PressedAt time.Time
}

// Result is the outcome of a fire attempt. Every value other than Admitted
// is an expected rejection, not an error.
type Result int

const (
	Admitted Result = iota
	// RejectedIdle means the trigger did not ask for a shot.
	RejectedIdle
	// RejectedEdgeSeen means this press edge was already evaluated.
	RejectedEdgeSeen
	// RejectedCadence means the weapon's rate limit is exhausted.
	RejectedCadence
	// RejectedClock means now is earlier than the last accepted shot.
	RejectedClock
	// RejectedUnavailable means the session may not shoot at all right now.
	// The weapon's window is not consulted.
	RejectedUnavailable
)

// OK reports whether the shot was admitted.
func (r Result) OK() bool {
	return r == Admitted
}

func (r Result) String() string {
	switch r {
	case Admitted:
		return "admitted"
	case RejectedIdle:
		return "idle"
	case RejectedEdgeSeen:
		return "edge_seen"
	case RejectedCadence:
		return "cadence"
	case RejectedClock:
		return "clock"
	case RejectedUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Policy is the fire-control state of one weapon instance.
type Policy struct {
	kind   Kind
	spec   Spec
	window *FireWindow

	lastEdge time.Time
	edgeSeen bool
}

// NewPolicy returns a policy enforcing spec.
func NewPolicy(kind Kind, spec Spec) *Policy {
	limit, horizon := spec.limits()
	return &Policy{
		kind:   kind,
		spec:   spec,
		window: NewFireWindow(limit, horizon),
	}
}

// Kind returns the weapon kind the policy was built for.
func (p *Policy) Kind() Kind {
	return p.kind
}

// TryFire decides whether a shot at now is admitted. On Admitted the shot is
// recorded and the caller is expected to transmit it.
func (p *Policy) TryFire(now time.Time, t Trigger) Result {
	if p.spec.Cadence == Sustained {
		if !t.Holding {
			return RejectedIdle
		}
	} else {
		if !t.NewPress {
			return RejectedIdle
		}
		if !t.PressedAt.IsZero() {
			if p.edgeSeen && t.PressedAt.Equal(p.lastEdge) {
				return RejectedEdgeSeen
			}
			p.lastEdge = t.PressedAt
			p.edgeSeen = true
		}
	}

	if last, ok := p.window.Last(); ok && now.Before(last) {
		return RejectedClock
	}
	if !p.window.Admits(now) {
		return RejectedCadence
	}
	p.window.Record(now)
	return Admitted
}

// Shots returns how many accepted shots are inside the current window.
func (p *Policy) Shots(now time.Time) int {
	p.window.Prune(now)
	return p.window.Len()
}
