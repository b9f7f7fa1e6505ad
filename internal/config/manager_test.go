package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseYAMLWithDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
logging:
  level: debug
  console: true
station:
  code: GSV
watch:
  tick_interval: 2m
`)
	m := NewManager(path)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Watch.TickInterval != "2m" {
		t.Fatalf("tick_interval = %q", cfg.Watch.TickInterval)
	}

	// Omitted fields come back defaulted.
	if cfg.Station.System != "iata" || cfg.Station.Timezone != "Europe/Saratov" || cfg.Station.Lang != "ru_RU" {
		t.Fatalf("station defaults = %+v", cfg.Station)
	}
	if cfg.Telegram.PollTimeout != "10s" || cfg.Telegram.RatePerSec != 25 {
		t.Fatalf("telegram defaults = %+v", cfg.Telegram)
	}
	if w := cfg.Watch.Window; w.CeilingMin != 65 || w.StandardFromMin != 55 || w.StandardToMin != 65 {
		t.Fatalf("window defaults = %+v", w)
	}
	if cfg.Subscribers.Path != "./subscriptions.json" {
		t.Fatalf("subscribers path = %q", cfg.Subscribers.Path)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
station:
  code: GSV
  runway: "25L"
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseJSONConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"station":{"code":"GSV"},"metrics":{"enabled":true}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Metrics == nil || !cfg.Metrics.Enabled || cfg.Metrics.Addr != "127.0.0.1:9090" {
		t.Fatalf("metrics = %+v", cfg.Metrics)
	}
}

func TestLoadCommitGet(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
station:
  code: GSV
`)
	m := NewManager(path)
	if m.Get() != nil {
		t.Fatal("Get before Load should be nil")
	}
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get did not return committed config")
	}
}

func TestSubscribeReceivesNewestOnSlowConsumer(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	a := &Config{Station: StationConfig{Code: "A"}}
	b := &Config{Station: StationConfig{Code: "B"}}
	m.publish(a)
	m.publish(b) // buffer full: stale item dropped, newest kept

	select {
	case got := <-ch:
		if got.Station.Code != "B" {
			t.Fatalf("received %q, want newest B", got.Station.Code)
		}
	case <-time.After(time.Second):
		t.Fatal("no config received")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("watch.tick_interval", "5m"); err != nil || d != 5*time.Minute {
		t.Fatalf("got (%v, %v)", d, err)
	}
	if d, err := ParseDurationField("x", "  "); err != nil || d != 0 {
		t.Fatalf("blank: got (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil || !strings.Contains(err.Error(), ">= 0") {
		t.Fatalf("negative: err = %v", err)
	}
	if _, err := ParseDurationField("x", "five minutes"); err == nil {
		t.Fatal("expected error for junk duration")
	}

	if d, err := ParseDurationOrDefault("x", "", 10*time.Second); err != nil || d != 10*time.Second {
		t.Fatalf("default: got (%v, %v)", d, err)
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("YANDEX_API_KEY", "yk")

	s, err := LoadSecrets()
	if err != nil {
		t.Fatalf("LoadSecrets error: %v", err)
	}
	if s.TelegramToken != "123:abc" || s.YandexAPIKey != "yk" {
		t.Fatalf("secrets = %+v", s)
	}
}

func TestLoadSecretsMissing(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("YANDEX_API_KEY", "")

	if _, err := LoadSecrets(); err == nil {
		t.Fatal("expected error when YANDEX_API_KEY is empty")
	}
}
