package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
telegram:
  token: "file-token"
  owner_user_ids: [42]
  group_log: "-100123"
  poll_timeout: "15s"
logging:
  level: info
  console: true
reminders:
  check_every: "5s"
  max_per_owner: 20
storage:
  driver: file
  path: ./audit
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", sampleYAML))
	m.SetEnviron(map[string]string{})

	cfg, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "file-token" || cfg.Reminders.MaxPerOwner != 20 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if id, _ := cfg.Telegram.GroupLogID(); id != -100123 {
		t.Fatalf("group log id = %d", id)
	}
	if m.Get() != cfg {
		t.Fatal("Load did not commit")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.json", `{"telegram":{"token":"x"},"plugins":{}}`))
	m.SetEnviron(map[string]string{})
	if _, err := m.Parse(); err == nil || !strings.Contains(err.Error(), "plugins") {
		t.Fatalf("err = %v, want unknown field error", err)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.json", `{"telegram":{"token":"x"}}{}`))
	m.SetEnviron(map[string]string{})
	if _, err := m.Parse(); err == nil {
		t.Fatal("trailing data accepted")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", sampleYAML))
	m.SetEnviron(map[string]string{
		"TOKEN":      "env-token",
		"http_proxy": "http://proxy.local:3128",
		"LOG_LEVEL":  "debug",
	})
	cfg, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.Proxy != "http://proxy.local:3128" {
		t.Fatalf("proxy = %q", cfg.Telegram.Proxy)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.json", `{"telegram":{}}`))
	m.SetEnviron(map[string]string{})
	if _, err := m.Load(); err == nil || !strings.Contains(err.Error(), "TOKEN") {
		t.Fatalf("err = %v, want missing token", err)
	}
}

func TestReloadPublishesOnlyOnChange(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", sampleYAML)
	m := NewManager(path)
	m.SetEnviron(map[string]string{})
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	ch, unsub := m.Subscribe(1)
	defer unsub()
	ctx := context.Background()

	if changed, err := m.Reload(ctx); err != nil || changed {
		t.Fatalf("Reload unchanged = %v, %v", changed, err)
	}

	updated := strings.Replace(sampleYAML, `check_every: "5s"`, `check_every: "10s"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}
	if changed, err := m.Reload(ctx); err != nil || !changed {
		t.Fatalf("Reload changed = %v, %v", changed, err)
	}
	select {
	case cfg := <-ch:
		if cfg.Reminders.CheckEvery != "10s" {
			t.Fatalf("published check_every = %q", cfg.Reminders.CheckEvery)
		}
	case <-time.After(time.Second):
		t.Fatal("no publish")
	}

	broken := strings.Replace(updated, `check_every: "10s"`, `check_every: "soon"`, 1)
	if err := os.WriteFile(path, []byte(broken), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Reload(ctx); err == nil {
		t.Fatal("invalid reload accepted")
	}
	if m.Get().Reminders.CheckEvery != "10s" {
		t.Fatal("invalid reload was committed")
	}
}

func TestExampleConfigLoads(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join("..", "..", "config.example.yaml"))
	m.SetEnviron(map[string]string{"TOKEN": "123:abc"})
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("config.example.yaml: %v", err)
	}
	if _, err := cfg.Reminders.Settings(); err != nil {
		t.Fatal(err)
	}
}
