package flightwatch

import (
	"math"
	"time"
)

// Tier classifies how a due flight should be announced.
type Tier int

const (
	TierNone Tier = iota
	TierStandard
	TierUrgent
)

func (t Tier) String() string {
	switch t {
	case TierStandard:
		return "standard"
	case TierUrgent:
		return "urgent"
	default:
		return "none"
	}
}

// Window holds the notification band boundaries, in minutes.
//
// A flight is due when its scheduled time is 0..Ceiling minutes ahead of now.
// Within the due band, [StandardFrom, StandardTo] uses the "through in an
// hour" wording; the rest gets an urgent live countdown.
type Window struct {
	Ceiling      int
	StandardFrom int
	StandardTo   int
}

// DefaultWindow matches the widest observed behavior: due up to 65 minutes
// out, standard wording for 55..65.
func DefaultWindow() Window {
	return Window{Ceiling: 65, StandardFrom: 55, StandardTo: 65}
}

// DiffMinutes is the rounded minute distance from now to the scheduled time.
func DiffMinutes(now, scheduled time.Time) int {
	return int(math.Round(scheduled.Sub(now).Minutes()))
}

// Classify decides the announcement tier for a flight and the countdown
// minutes to display. Minutes are floored at zero so a flight that has just
// slipped past its time within tolerance never shows a negative countdown.
func (w Window) Classify(now, scheduled time.Time) (Tier, int) {
	diff := DiffMinutes(now, scheduled)
	if diff < 0 || diff > w.Ceiling {
		return TierNone, 0
	}
	if diff >= w.StandardFrom && diff <= w.StandardTo {
		return TierStandard, diff
	}
	minutes := diff
	if minutes < 0 {
		minutes = 0
	}
	return TierUrgent, minutes
}
