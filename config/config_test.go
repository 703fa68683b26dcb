package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FOLIO_DIR", dir)

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got, want := c.LogPath(), filepath.Join(dir, "events.jsonl"); got != want {
		t.Errorf("LogPath() = %q, want %q", got, want)
	}
	if got, want := c.StartingStatePath(), filepath.Join(dir, "starting_state.json"); got != want {
		t.Errorf("StartingStatePath() = %q, want %q", got, want)
	}
	if c.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", c.Currency)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FOLIO_DIR", dir)
	content := "log_file: ledger.jsonl\ncurrency: EUR\nlog_level: debug\ncache_file: /tmp/folio-cache.db\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FOLIO_CURRENCY", "GBP")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got, want := c.LogPath(), filepath.Join(dir, "ledger.jsonl"); got != want {
		t.Errorf("LogPath() = %q, want %q", got, want)
	}
	if c.Currency != "GBP" {
		t.Errorf("Currency = %q, want GBP from the environment", c.Currency)
	}
	if got := c.CachePath(); got != "/tmp/folio-cache.db" {
		t.Errorf("CachePath() = %q, want the absolute path untouched", got)
	}
	if l, _ := c.Level(); l != zerolog.DebugLevel {
		t.Errorf("Level() = %v, want debug", l)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FOLIO_DIR", dir)

	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "currency: [oops"},
		{"invalid currency", "currency: EURO\n"},
		{"invalid level", "log_level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := filepath.Join(dir, "bad.yaml")
			if err := os.WriteFile(file, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(file); err == nil {
				t.Errorf("Load(%q) error = nil, want an error", tt.content)
			}
		})
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() of an explicit missing file should fail")
	}
}

func TestEnviron_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FOLIO_DIR", dir)
	t.Setenv("FOLIO_CURRENCY", "EUR")
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	env, err := c.Environ()
	if err != nil {
		t.Fatalf("Environ() error = %v", err)
	}
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		t.Setenv(k, v)
	}
	got, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if got.LogPath() != c.LogPath() || got.HistoriesPath() != c.HistoriesPath() || got.CachePath() != c.CachePath() {
		t.Errorf("Load() from Environ() = %+v, want the paths of %+v", got, c)
	}
	if got.Currency != "EUR" {
		t.Errorf("Currency = %q, want EUR", got.Currency)
	}
}
