// Package schedule fetches the station timetable from the Yandex Rasp API
// and maps it to normalized FlightEvents.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flightbot/pkg/logx"
)

const defaultBaseURL = "https://api.rasp.yandex.net/v3.0/schedule/"

type Config struct {
	APIKey  string
	Station string // station code, e.g. "GSV"
	System  string // coding system, e.g. "iata"
	Lang    string // e.g. "ru_RU"
	BaseURL string // override for tests
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	loc  *time.Location
	http *http.Client
	log  logx.Logger
}

func NewClient(cfg Config, loc *time.Location, log logx.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if loc == nil {
		loc = time.UTC
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:  cfg,
		loc:  loc,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// response mirrors the two shapes the API has been observed to return:
// the documented "schedule" list and the older "result" list.
type response struct {
	Schedule []row `json:"schedule"`
	Result   []row `json:"result"`
}

type row struct {
	Departure     string  `json:"departure"`
	DepartureTime string  `json:"departure_time"`
	Arrival       string  `json:"arrival"`
	ArrivalTime   string  `json:"arrival_time"`
	Thread        *thread `json:"thread"`
}

type thread struct {
	Number string     `json:"number"`
	To     *direction `json:"to"`
	From   *direction `json:"from"`
}

type direction struct {
	Title string `json:"title"`
}

// Fetch returns the station's flight events of one type for the given
// calendar date. Every failure comes back as a *ProviderError; Fetch never
// panics past this boundary.
func (c *Client) Fetch(ctx context.Context, ev EventType, date time.Time) ([]FlightEvent, error) {
	q := url.Values{}
	q.Set("apikey", c.cfg.APIKey)
	q.Set("station", c.cfg.Station)
	q.Set("system", c.cfg.System)
	q.Set("transport_types", "plane")
	q.Set("event", string(ev))
	q.Set("date", date.In(c.loc).Format("2006-01-02"))
	q.Set("lang", c.cfg.Lang)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Event: ev, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ProviderError{Event: ev, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		// Read a slice of the body for the log line; the API returns a JSON
		// error object with a human-readable text.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ProviderError{Event: ev, Err: fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))}
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &ProviderError{Event: ev, Err: fmt.Errorf("decode: %w", err)}
	}

	rows := payload.Schedule
	if rows == nil {
		rows = payload.Result
	}

	events := make([]FlightEvent, 0, len(rows))
	for _, r := range rows {
		e, ok := c.mapRow(r, ev, date)
		if !ok {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

func (c *Client) mapRow(r row, ev EventType, date time.Time) (FlightEvent, bool) {
	raw := r.Departure
	alt := r.DepartureTime
	if ev == Arrival {
		raw = r.Arrival
		alt = r.ArrivalTime
	}
	if raw == "" {
		raw = alt
	}
	if raw == "" {
		return FlightEvent{}, false
	}

	when, err := c.parseTime(raw, date)
	if err != nil {
		c.log.Debug("skipping row with unparseable time", logx.String("raw", raw), logx.Err(err))
		return FlightEvent{}, false
	}

	num := "???"
	city := ""
	if r.Thread != nil {
		if r.Thread.Number != "" {
			num = r.Thread.Number
		}
		if ev == Departure && r.Thread.To != nil {
			city = r.Thread.To.Title
		}
		if ev == Arrival && r.Thread.From != nil {
			city = r.Thread.From.Title
		}
	}

	return FlightEvent{Number: num, Type: ev, Scheduled: when.In(c.loc), City: city}, true
}

// parseTime accepts the timestamp shapes the API emits: full RFC3339 with an
// offset, and bare clock times that are relative to the requested date in
// the station's timezone.
func (c *Client) parseTime(raw string, date time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", raw, c.loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("15:04:05", raw, c.loc); err == nil {
		d := date.In(c.loc)
		return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, c.loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}
