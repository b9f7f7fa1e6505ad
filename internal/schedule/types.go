package schedule

import (
	"fmt"
	"time"
)

// EventType selects the station event leg being queried.
type EventType string

const (
	Departure EventType = "departure"
	Arrival   EventType = "arrival"
)

// FlightEvent is one normalized row of the station schedule.
// Immutable once built; rebuilt fresh on every poll.
type FlightEvent struct {
	Number    string    // flight number, "???" when the provider row has none
	Type      EventType
	Scheduled time.Time // in the airport timezone
	City      string    // destination for departures, origin for arrivals
}

// Key identifies the event for dedup purposes, independent of subscriber.
func (e FlightEvent) Key() string {
	return string(e.Type) + "|" + e.Number + "|" + e.Scheduled.Format(time.RFC3339)
}

// ProviderError marks any failure at the schedule API boundary (network,
// HTTP status, payload shape). Callers skip the tick and retry naturally on
// the next one.
type ProviderError struct {
	Event EventType
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("schedule provider (%s): %v", e.Event, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
