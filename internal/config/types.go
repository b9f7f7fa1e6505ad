package config

// Config is the file-backed part of the bot configuration.
//
// All durations are Go duration strings (e.g. "30s", "5m").
// Secrets (bot token, schedule API key) never live here; see Secrets.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Station  StationConfig  `json:"station"`
	Watch    WatchConfig    `json:"watch"`

	Subscribers SubscribersConfig `json:"subscribers"`
	Storage     *StorageConfig    `json:"storage,omitempty"`
	Metrics     *MetricsConfig    `json:"metrics,omitempty"`
}

type TelegramConfig struct {
	PollTimeout string `json:"poll_timeout,omitempty"` // default "10s"
	RatePerSec  int    `json:"rate_per_sec,omitempty"` // default 25
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StationConfig pins the watched airport.
//
// Timezone is the airport's IANA zone; every "now"/"scheduled" comparison and
// the schedule query date are computed in this zone, never in host-local time.
type StationConfig struct {
	Code     string `json:"code"`               // e.g. "GSV"
	System   string `json:"system,omitempty"`   // coding system, default "iata"
	Timezone string `json:"timezone,omitempty"` // default "Europe/Saratov"
	Lang     string `json:"lang,omitempty"`     // default "ru_RU"
}

// WatchConfig controls the reconciliation tick and the notification window.
type WatchConfig struct {
	TickInterval string       `json:"tick_interval,omitempty"` // default "5m"
	Window       WindowConfig `json:"window"`
}

// WindowConfig exposes the notification band boundaries.
//
// A flight is due when its scheduled time is 0..ceiling_min minutes ahead.
// Within the due band, [standard_from_min, standard_to_min] uses the
// "through in an hour" wording; everything else gets the urgent countdown.
type WindowConfig struct {
	CeilingMin      int `json:"ceiling_min,omitempty"`       // default 65
	StandardFromMin int `json:"standard_from_min,omitempty"` // default 55
	StandardToMin   int `json:"standard_to_min,omitempty"`   // default 65
}

type SubscribersConfig struct {
	Path string `json:"path,omitempty"` // default "./subscriptions.json"
}

// StorageConfig controls optional dedup/audit persistence.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./flightbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// MetricsConfig controls the optional Prometheus listener.
// Prefer binding to localhost.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:9090"
}

// Defaulted returns a copy with zero fields replaced by defaults.
func (c Config) Defaulted() Config {
	if c.Telegram.PollTimeout == "" {
		c.Telegram.PollTimeout = "10s"
	}
	if c.Telegram.RatePerSec <= 0 {
		c.Telegram.RatePerSec = 25
	}
	if c.Station.Code == "" {
		c.Station.Code = "GSV"
	}
	if c.Station.System == "" {
		c.Station.System = "iata"
	}
	if c.Station.Timezone == "" {
		c.Station.Timezone = "Europe/Saratov"
	}
	if c.Station.Lang == "" {
		c.Station.Lang = "ru_RU"
	}
	if c.Watch.TickInterval == "" {
		c.Watch.TickInterval = "5m"
	}
	if c.Watch.Window.CeilingMin <= 0 {
		c.Watch.Window.CeilingMin = 65
	}
	if c.Watch.Window.StandardFromMin <= 0 {
		c.Watch.Window.StandardFromMin = 55
	}
	if c.Watch.Window.StandardToMin <= 0 {
		c.Watch.Window.StandardToMin = 65
	}
	if c.Subscribers.Path == "" {
		c.Subscribers.Path = "./subscriptions.json"
	}
	if c.Metrics != nil && c.Metrics.Addr == "" {
		c.Metrics.Addr = "127.0.0.1:9090"
	}
	return c
}
