package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const yamlConfig = `
telegram:
  token: "123:abc"
  chat_id: 42
  owner_user_ids: [42, 99]
  poll_timeout: 10s
logging:
  level: debug
  console: true
  file:
    enabled: true
    path: ./remindd.log
store:
  driver: sqlite
  path: ./remindd.db
  busy_timeout: 5s
engine:
  timezone: Europe/Berlin
  baseline_timeout: 20s
notifier:
  rate_per_sec: 2
  dedup_window: 30s
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, t.TempDir(), "config.yaml", yamlConfig)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.ChatID != 42 {
		t.Fatalf("telegram section: %+v", cfg.Telegram)
	}
	if len(cfg.Telegram.OwnerUserIDs) != 2 || cfg.Telegram.OwnerUserIDs[1] != 99 {
		t.Fatalf("owner ids: %v", cfg.Telegram.OwnerUserIDs)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.File.Enabled {
		t.Fatalf("logging section: %+v", cfg.Logging)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.BusyTimeout != "5s" {
		t.Fatalf("store section: %+v", cfg.Store)
	}
	if cfg.Engine.Timezone != "Europe/Berlin" {
		t.Fatalf("engine section: %+v", cfg.Engine)
	}
	if cfg.Notifier == nil || cfg.Notifier.RatePerSec != 2 || cfg.Notifier.DedupWindow != "30s" {
		t.Fatalf("notifier section: %+v", cfg.Notifier)
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, t.TempDir(), "config.json",
		`{"telegram":{"token":"t","chat_id":1},"logging":{"level":"info","console":true,"file":{"enabled":false,"path":""}},"store":{"driver":"file","path":"./r.json"},"engine":{}}`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Store.Driver != "file" || cfg.Telegram.ChatID != 1 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Notifier != nil {
		t.Fatalf("omitted notifier should stay nil, got %+v", cfg.Notifier)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, t.TempDir(), "config.yaml", `
telegram:
  token: "t"
  chat_identifier: 1
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, t.TempDir(), "config.json", `{"telegram":{"token":"t","chat_id":1}} {"extra":1}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected trailing data to be rejected")
	}
}

func TestParseMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := NewManager(filepath.Join(t.TempDir(), "absent.yaml")).Parse(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadCommitsAndGetReturnsIt(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, t.TempDir(), "config.yaml", yamlConfig)
	m := NewManager(path)

	if m.Get() != nil {
		t.Fatal("Get before Load should be nil")
	}
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get does not return the loaded config")
	}
}

func TestSubscribePublishDropOldest(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{Store: StoreConfig{Driver: "file"}}
	second := &Config{Store: StoreConfig{Driver: "sqlite"}}
	m.publish(first)
	m.publish(second) // buffer full: first is dropped, second delivered

	select {
	case got := <-ch:
		if got != second {
			t.Fatalf("got %+v, want the newest config", got.Store)
		}
	case <-time.After(time.Second):
		t.Fatal("nothing delivered")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	m.Unsubscribe(ch)
	m.Unsubscribe(ch) // idempotent

	if _, ok := <-ch; ok {
		t.Fatal("channel not closed")
	}
	// Publishing after unsubscribe must not panic.
	m.publish(&Config{})
}

func TestDurationFields(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", "90s"); err != nil || d != 90*time.Second {
		t.Fatalf("ParseDurationField = %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", "  "); err != nil || d != 0 {
		t.Fatalf("blank duration = %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "five minutes"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("expected negative duration to be rejected")
	}
	if d, err := ParseDurationOrDefault("x", "", 30*time.Second); err != nil || d != 30*time.Second {
		t.Fatalf("default not applied: %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "5s", 30*time.Second); err != nil || d != 5*time.Second {
		t.Fatalf("explicit value ignored: %v, %v", d, err)
	}
}
