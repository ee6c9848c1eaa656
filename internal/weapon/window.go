package weapon

import "time"

// FireWindow is a sliding record of accepted shot times. Entries older than
// the horizon are pruned before every admission check, entries are kept in
// non-decreasing order, and the record never holds more than cap entries.
type FireWindow struct {
	horizon time.Duration
	cap     int
	shots   []time.Time
}

// NewFireWindow returns a window admitting at most limit shots per horizon.
func NewFireWindow(limit int, horizon time.Duration) *FireWindow {
	if limit < 1 {
		limit = 1
	}
	return &FireWindow{
		horizon: horizon,
		cap:     limit,
		shots:   make([]time.Time, 0, limit),
	}
}

// Prune drops every entry at least one horizon older than now.
func (w *FireWindow) Prune(now time.Time) {
	i := 0
	for i < len(w.shots) && now.Sub(w.shots[i]) >= w.horizon {
		i++
	}
	if i > 0 {
		w.shots = append(w.shots[:0], w.shots[i:]...)
	}
}

// Admits prunes the window and reports whether a shot at now fits. This is
// the same as checking that the shot cap positions back is at least one
// horizon old.
func (w *FireWindow) Admits(now time.Time) bool {
	w.Prune(now)
	return len(w.shots) < w.cap
}

// Record appends an accepted shot. Callers must check Admits first.
func (w *FireWindow) Record(now time.Time) {
	if len(w.shots) == w.cap {
		w.shots = append(w.shots[:0], w.shots[1:]...)
	}
	w.shots = append(w.shots, now)
}

// Last returns the most recent accepted shot.
func (w *FireWindow) Last() (time.Time, bool) {
	if len(w.shots) == 0 {
		return time.Time{}, false
	}
	return w.shots[len(w.shots)-1], true
}

// Len is the number of shots currently inside the window.
func (w *FireWindow) Len() int {
	return len(w.shots)
}

// Reset forgets every recorded shot.
func (w *FireWindow) Reset() {
	w.shots = w.shots[:0]
}
