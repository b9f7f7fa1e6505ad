package schedule

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flightbot/pkg/logx"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	loc := time.FixedZone("UTC+4", 4*3600)
	return NewClient(Config{
		APIKey:  "k",
		Station: "GSV",
		System:  "iata",
		Lang:    "ru_RU",
		BaseURL: srv.URL + "/",
	}, loc, logx.Nop())
}

func TestFetchQueryParameters(t *testing.T) {
	t.Parallel()
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = map[string]string{}
		for k := range r.URL.Query() {
			got[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(`{"schedule":[]}`))
	})

	date := time.Date(2025, 6, 1, 22, 30, 0, 0, time.UTC) // June 2nd at UTC+4
	if _, err := c.Fetch(context.Background(), Departure, date); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	want := map[string]string{
		"apikey":          "k",
		"station":         "GSV",
		"system":          "iata",
		"transport_types": "plane",
		"event":           "departure",
		"date":            "2025-06-02",
		"lang":            "ru_RU",
		"format":          "json",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("query %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestFetchMapsScheduleRows(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"schedule":[
			{"departure":"2025-06-01T13:00:00+04:00","thread":{"number":"SU123","to":{"title":"Москва"}}},
			{"departure":"","departure_time":"15:30:00","thread":{"number":"FV9","to":{"title":"Сочи"}}},
			{"departure":"not-a-time","thread":{"number":"XX1"}},
			{"departure":"2025-06-01T18:00:00+04:00"}
		]}`))
	})

	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	events, err := c.Fetch(context.Background(), Departure, date)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 (unparseable row skipped)", len(events))
	}

	if events[0].Number != "SU123" || events[0].City != "Москва" {
		t.Fatalf("event[0] = %+v", events[0])
	}
	if got := events[0].Scheduled.Format("15:04"); got != "13:00" {
		t.Fatalf("event[0] time = %s, want 13:00", got)
	}

	// Bare clock time resolves against the requested date at the station.
	if got := events[1].Scheduled.Format("2006-01-02 15:04"); got != "2025-06-01 15:30" {
		t.Fatalf("event[1] time = %s", got)
	}

	// Row without a thread falls back to the placeholder number.
	if events[2].Number != "???" {
		t.Fatalf("event[2] number = %q, want ???", events[2].Number)
	}
}

func TestFetchResultFallback(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[
			{"arrival":"2025-06-01T09:15:00+04:00","thread":{"number":"DP55","from":{"title":"Казань"}}}
		]}`))
	})

	events, err := c.Fetch(context.Background(), Arrival, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Number != "DP55" || events[0].City != "Казань" || events[0].Type != Arrival {
		t.Fatalf("event = %+v", events[0])
	}
}

func TestFetchHTTPErrorWrapsProviderError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"text":"quota exceeded"}}`, http.StatusForbidden)
	})

	_, err := c.Fetch(context.Background(), Departure, time.Now())
	if err == nil {
		t.Fatal("expected error on 403")
	}
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("error %T does not wrap ProviderError", err)
	}
	if perr.Event != Departure {
		t.Fatalf("ProviderError.Event = %q, want departure", perr.Event)
	}
}

func TestFetchMalformedBody(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"schedule": [`))
	})

	_, err := c.Fetch(context.Background(), Departure, time.Now())
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
}

func TestEventKeyStable(t *testing.T) {
	t.Parallel()
	e := FlightEvent{
		Number:    "SU123",
		Type:      Departure,
		Scheduled: time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
	}
	want := "departure|SU123|2025-06-01T13:00:00Z"
	if got := e.Key(); got != want {
		t.Fatalf("Key = %q, want %q", got, want)
	}
}
