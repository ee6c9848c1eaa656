package weapon

import "time"

// Kind names a weapon type as it appears on the wire.
type Kind string

const (
	Pistol         Kind = "pistol"
	Shotgun        Kind = "shotgun"
	MachineGun     Kind = "machine_gun"
	RocketLauncher Kind = "rocket_launcher"
	Laser          Kind = "laser"
)

// Cadence selects how a weapon's shots are admitted.
type Cadence int

const (
	// Sustained fires while the trigger is held, one shot per MinInterval.
	Sustained Cadence = iota + 1
	// SingleInterval fires on a new press, at most once per MinInterval.
	SingleInterval
	// CountedWindow fires on a new press while fewer than Shots shots were
	// accepted in the trailing Window.
	CountedWindow
)

func (c Cadence) String() string {
	switch c {
	case Sustained:
		return "sustained"
	case SingleInterval:
		return "single_interval"
	case CountedWindow:
		return "counted_window"
	default:
		return "unknown"
	}
}

// Spec is the client-side fire limit of a weapon type. It mirrors the
// server's fire rate table.
type Spec struct {
	Cadence     Cadence
	MinInterval time.Duration
	Shots       int
	Window      time.Duration
}

// limits returns the (cap, horizon) pair of the FireWindow enforcing s.
func (s Spec) limits() (int, time.Duration) {
	if s.Cadence == CountedWindow {
		return s.Shots, s.Window
	}
	return 1, s.MinInterval
}

var catalog = map[Kind]Spec{
	Pistol:         {Cadence: CountedWindow, Shots: 3, Window: time.Second},
	Shotgun:        {Cadence: SingleInterval, MinInterval: time.Second},
	MachineGun:     {Cadence: Sustained, MinInterval: 100 * time.Millisecond},
	RocketLauncher: {Cadence: SingleInterval, MinInterval: time.Second},
	Laser:          {Cadence: Sustained, MinInterval: 20 * time.Millisecond},
}

// Lookup returns the spec of a known weapon kind.
func Lookup(kind Kind) (Spec, bool) {
	s, ok := catalog[kind]
	return s, ok
}

// Resolve maps a wire weapon name to a known kind. Unknown or empty names fall
// back to the pistol, which every player spawns with.
func Resolve(name string) Kind {
	if _, ok := catalog[Kind(name)]; ok {
		return Kind(name)
	}
	return Pistol
}
