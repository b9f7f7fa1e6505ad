package flightwatch

import (
	"fmt"
	"time"

	"flightbot/internal/schedule"
)

// FormatMessage renders the notification text for one flight event.
// Telegram Markdown; clock times are rendered in the airport timezone.
func FormatMessage(e schedule.FlightEvent, tier Tier, minutes int, loc *time.Location) string {
	at := e.Scheduled.In(loc).Format("15:04")

	switch {
	case e.Type == schedule.Departure && tier == TierStandard:
		return fmt.Sprintf("✈️ Рейс *%s* вылетает в %s через час (в %s).", e.Number, e.City, at)
	case e.Type == schedule.Departure:
		return fmt.Sprintf("✈️ Рейс *%s* вылетает в %s через %d мин (в %s).", e.Number, e.City, minutes, at)
	case tier == TierStandard:
		return fmt.Sprintf("🛬 Рейс *%s* из %s прибудет через час (в %s).", e.Number, e.City, at)
	default:
		return fmt.Sprintf("🛬 Рейс *%s* из %s прибудет через %d мин (в %s).", e.Number, e.City, minutes, at)
	}
}
