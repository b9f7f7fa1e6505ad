package flightwatch

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	w := DefaultWindow()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		ahead   time.Duration
		tier    Tier
		minutes int
	}{
		{name: "exactly an hour", ahead: 60 * time.Minute, tier: TierStandard, minutes: 60},
		{name: "standard lower bound", ahead: 55 * time.Minute, tier: TierStandard, minutes: 55},
		{name: "standard upper bound", ahead: 65 * time.Minute, tier: TierStandard, minutes: 65},
		{name: "ten minutes out", ahead: 10 * time.Minute, tier: TierUrgent, minutes: 10},
		{name: "boarding now", ahead: 0, tier: TierUrgent, minutes: 0},
		{name: "just under standard band", ahead: 54 * time.Minute, tier: TierUrgent, minutes: 54},
		{name: "rounds to zero", ahead: -20 * time.Second, tier: TierUrgent, minutes: 0},
		{name: "already departed", ahead: -5 * time.Minute, tier: TierNone},
		{name: "past the ceiling", ahead: 70 * time.Minute, tier: TierNone},
		{name: "tomorrow", ahead: 25 * time.Hour, tier: TierNone},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tier, minutes := w.Classify(now, now.Add(tt.ahead))
			if tier != tt.tier {
				t.Fatalf("tier = %v, want %v", tier, tt.tier)
			}
			if tier != TierNone && minutes != tt.minutes {
				t.Fatalf("minutes = %d, want %d", minutes, tt.minutes)
			}
		})
	}
}

func TestClassifyExactMatchWindow(t *testing.T) {
	t.Parallel()
	// A revision that only fired at exactly 60 minutes is representable
	// by collapsing the standard band.
	w := Window{Ceiling: 60, StandardFrom: 60, StandardTo: 60}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if tier, _ := w.Classify(now, now.Add(60*time.Minute)); tier != TierStandard {
		t.Fatalf("tier at 60m = %v, want standard", tier)
	}
	if tier, _ := w.Classify(now, now.Add(59*time.Minute)); tier != TierUrgent {
		t.Fatalf("tier at 59m = %v, want urgent", tier)
	}
	if tier, _ := w.Classify(now, now.Add(61*time.Minute)); tier != TierNone {
		t.Fatalf("tier at 61m = %v, want none", tier)
	}
}

func TestDiffMinutesRounds(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if got := DiffMinutes(now, now.Add(59*time.Minute+40*time.Second)); got != 60 {
		t.Fatalf("DiffMinutes = %d, want 60", got)
	}
	if got := DiffMinutes(now, now.Add(59*time.Minute+20*time.Second)); got != 59 {
		t.Fatalf("DiffMinutes = %d, want 59", got)
	}
}
