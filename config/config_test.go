package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadCreatesTemplate(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("SKYCAST_PROVIDER", "")
	path := filepath.Join(dir, "conf", "config.toml")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !FileExists(path) {
		t.Fatal("template was not written")
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("fresh config differs from defaults")
	}

	// the written template must decode to the defaults as well
	again, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile(template): %v", err)
	}
	if !reflect.DeepEqual(again, Default()) {
		t.Errorf("template decodes to\n%+v\nwant\n%+v", again, Default())
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[model]
provider = "ollama"
model = "qwen3"
max_output_tokens = 250

[capability]
transport = "sse"
url = "http://weather.internal:3001/sse"
handshake_timeout = "5s"

[[capability.servers]]
id = "files"
transport = "stdio"
command = "files-mcp"

[profiles.yr]
user_agent = "acme-weather/2.0 ops@acme.test"

[keys.modifiers]
primary = "ctrl"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Model.Provider != "ollama" || cfg.Model.Model != "qwen3" || cfg.Model.MaxOutputTokens != 250 {
		t.Errorf("model section: %+v", cfg.Model)
	}
	if cfg.Model.SystemPrompt != DefaultSystemPrompt {
		t.Errorf("unset keys should keep defaults, got %q", cfg.Model.SystemPrompt)
	}
	if cfg.Capability.HandshakeTimeout != 5*time.Second {
		t.Errorf("handshake timeout: %v", cfg.Capability.HandshakeTimeout)
	}
	if cfg.Profiles.Yr.UserAgent != "acme-weather/2.0 ops@acme.test" || cfg.Profiles.Yr.BaseURL != "https://api.met.no" {
		t.Errorf("yr profile: %+v", cfg.Profiles.Yr)
	}
	if cfg.Keys.Primary() != "ctrl" {
		t.Errorf("keys: %+v", cfg.Keys)
	}

	entries := cfg.ServerEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 server entries, got %d", len(entries))
	}
	if entries[0].ID != "weather" || entries[0].URL != "http://weather.internal:3001/sse" {
		t.Errorf("primary entry: %+v", entries[0])
	}
	if entries[1].ID != "files" || entries[1].Command != "files-mcp" {
		t.Errorf("extra entry: %+v", entries[1])
	}
}

func TestLoadFileRejectsInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("[model\nprovider="), 0600)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SKYCAST_PROVIDER", "openai")
	t.Setenv("SKYCAST_MODEL", "gpt-4o")
	t.Setenv("SKYCAST_MAX_OUTPUT_TOKENS", "64")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SKYCAST_DATA_DIR", "")

	cfg := Default()
	cfg.applyEnvOverrides()

	if cfg.Model.Provider != "openai" || cfg.Model.Model != "gpt-4o" {
		t.Errorf("provider/model: %+v", cfg.Model)
	}
	if cfg.Model.MaxOutputTokens != 64 {
		t.Errorf("max tokens: %d", cfg.Model.MaxOutputTokens)
	}
	if cfg.Model.APIKey != "sk-test" {
		t.Errorf("api key not taken from the environment")
	}

	t.Setenv("SKYCAST_MAX_OUTPUT_TOKENS", "-3")
	cfg = Default()
	cfg.applyEnvOverrides()
	if cfg.Model.MaxOutputTokens != DefaultMaxOutputTokens {
		t.Errorf("invalid token override applied: %d", cfg.Model.MaxOutputTokens)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Model.Provider = "ollama"
	cfg.Orchestrator.ParallelTools = true

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode %v", info.Mode().Perm())
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Model.Provider != "ollama" || !loaded.Orchestrator.ParallelTools {
		t.Errorf("round trip lost values: %+v", loaded)
	}
	if loaded.Profiles.NWS.Timeout != 20*time.Second {
		t.Errorf("duration lost: %v", loaded.Profiles.NWS.Timeout)
	}
}

func TestCachePath(t *testing.T) {
	cfg := Default()
	cfg.DataDirectory = "/var/lib/skycast"
	if got := cfg.CachePath(); got != "/var/lib/skycast/weather-cache.db" {
		t.Errorf("CachePath() = %q", got)
	}
	cfg.Server.CachePath = "/tmp/cache.db"
	if got := cfg.CachePath(); got != "/tmp/cache.db" {
		t.Errorf("CachePath() = %q", got)
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("SKYCAST_TEST_DIR", "/srv")

	tests := map[string]string{
		"~/data":                "/home/tester/data",
		"$SKYCAST_TEST_DIR/x/":  "/srv/x",
		"":                      "",
		"relative/../plain":     "plain",
	}
	for in, want := range tests {
		if got := ExpandPath(in); got != want {
			t.Errorf("ExpandPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKeyBindings(t *testing.T) {
	kb := DefaultKeybindings()

	tests := []struct {
		action  string
		key     string
		display string
	}{
		{"retry_turn", "alt+r", "Alt+R"},
		{"half_page_down", "alt+J", "Alt+Shift+J"},
		{"page_up", "pgup", "Pgup"},
		{"nonexistent", "", ""},
	}
	for _, tt := range tests {
		if got := kb.ActionKey(tt.action); got != tt.key {
			t.Errorf("ActionKey(%q) = %q, want %q", tt.action, got, tt.key)
		}
		if got := kb.DisplayActionKey(tt.action); got != tt.display {
			t.Errorf("DisplayActionKey(%q) = %q, want %q", tt.action, got, tt.display)
		}
	}

	kb.Actions = map[string]string{"retry_turn": "ctrl+r"}
	if got := kb.ActionKey("retry_turn"); got != "ctrl+r" {
		t.Errorf("override ignored: %q", got)
	}

	kb.Modifiers = ModifierConfig{Primary: "ctrl", Secondary: "ctrl+shift"}
	if got := kb.ActionKey("half_page_up"); got != "ctrl+K" {
		t.Errorf("secondary with ctrl: %q", got)
	}
	if ok, warning := kb.Validate(); !ok || warning == "" {
		t.Errorf("ctrl should validate with a warning, got %v %q", ok, warning)
	}
	kb.Modifiers.Primary = "shift"
	if ok, _ := kb.Validate(); ok {
		t.Error("shift alone must not validate")
	}
}

func TestCheckDebug(t *testing.T) {
	for value, want := range map[string]bool{"1": true, "true": true, "": false, "yes": false} {
		t.Setenv("SKYCAST_DEBUG", value)
		if got := CheckDebug(); got != want {
			t.Errorf("SKYCAST_DEBUG=%q: CheckDebug() = %v", value, got)
		}
	}
}
