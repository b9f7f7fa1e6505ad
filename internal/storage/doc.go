package storage

// Package storage provides the optional persistence layer used by the bot.
//
// It currently supports:
//   - Sent-notification records (audit of delivered flight alerts)
//   - Notification dedup state (so a restart inside the window does not
//     re-notify every subscriber)
