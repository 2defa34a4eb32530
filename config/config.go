package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type ModelConfig struct {
	Provider        string `toml:"provider"`
	Model           string `toml:"model"`
	BaseURL         string `toml:"base_url,omitempty"`
	APIKey          string `toml:"api_key,omitempty"`
	MaxOutputTokens int    `toml:"max_output_tokens"`
	SystemPrompt    string `toml:"system_prompt"`
}

// ServerEntry describes one capability server the client connects to.
type ServerEntry struct {
	ID        string            `toml:"id"`
	Transport string            `toml:"transport"`
	Command   string            `toml:"command,omitempty"`
	Args      []string          `toml:"args,omitempty"`
	Env       map[string]string `toml:"env,omitempty"`
	URL       string            `toml:"url,omitempty"`
	Headers   map[string]string `toml:"headers,omitempty"`
}

type CapabilityConfig struct {
	ID               string            `toml:"id"`
	Transport        string            `toml:"transport"`
	Command          string            `toml:"command,omitempty"`
	Args             []string          `toml:"args,omitempty"`
	Env              map[string]string `toml:"env,omitempty"`
	URL              string            `toml:"url,omitempty"`
	Headers          map[string]string `toml:"headers,omitempty"`
	HandshakeTimeout time.Duration     `toml:"handshake_timeout"`
	Servers          []ServerEntry     `toml:"servers,omitempty"`
}

type OrchestratorConfig struct {
	MaxToolRounds int  `toml:"max_tool_rounds"`
	ParallelTools bool `toml:"parallel_tools"`
	ParallelLimit int  `toml:"parallel_limit"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	Version   string `toml:"version"`
	Transport string `toml:"transport"`
	Addr      string `toml:"addr"`
	BaseURL   string `toml:"base_url,omitempty"`
	CachePath string `toml:"cache_path,omitempty"`
}

// ProfileConfig is a named HTTP client profile for one upstream API.
type ProfileConfig struct {
	BaseURL   string        `toml:"base_url"`
	UserAgent string        `toml:"user_agent"`
	Timeout   time.Duration `toml:"timeout"`
}

type ProfilesConfig struct {
	Yr        ProfileConfig `toml:"yr"`
	NWS       ProfileConfig `toml:"nws"`
	Nominatim ProfileConfig `toml:"nominatim"`
}

type Config struct {
	DataDirectory string             `toml:"data_directory"`
	Model         ModelConfig        `toml:"model"`
	Capability    CapabilityConfig   `toml:"capability"`
	Orchestrator  OrchestratorConfig `toml:"orchestrator"`
	Server        ServerConfig       `toml:"server"`
	Profiles      ProfilesConfig     `toml:"profiles"`
	Keys          KeyBindingsConfig  `toml:"keys"`
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// CachePath is the sqlite file backing the upstream response cache.
func (c *Config) CachePath() string {
	if c.Server.CachePath != "" {
		return ExpandPath(c.Server.CachePath)
	}
	return filepath.Join(c.DataDir(), "weather-cache.db")
}

// ServerEntries returns the primary capability server followed by the extra
// [[capability.servers]] entries.
func (c *Config) ServerEntries() []ServerEntry {
	primary := ServerEntry{
		ID:        c.Capability.ID,
		Transport: c.Capability.Transport,
		Command:   c.Capability.Command,
		Args:      c.Capability.Args,
		Env:       c.Capability.Env,
		URL:       c.Capability.URL,
		Headers:   c.Capability.Headers,
	}
	if primary.ID == "" {
		primary.ID = "weather"
	}
	return append([]ServerEntry{primary}, c.Capability.Servers...)
}

func (c *Config) applyEnvOverrides() {
	if provider := os.Getenv("SKYCAST_PROVIDER"); provider != "" {
		c.Model.Provider = provider
	}
	if model := os.Getenv("SKYCAST_MODEL"); model != "" {
		c.Model.Model = model
	}
	if dataDir := os.Getenv("SKYCAST_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if tokens := os.Getenv("SKYCAST_MAX_OUTPUT_TOKENS"); tokens != "" {
		if n, err := strconv.Atoi(tokens); err == nil && n > 0 {
			c.Model.MaxOutputTokens = n
		}
	}

	if c.Model.APIKey == "" {
		switch c.Model.Provider {
		case "anthropic":
			c.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			c.Model.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" && c.Model.Provider == "ollama" && c.Model.BaseURL == "" {
		c.Model.BaseURL = host
	}
}

func CheckDebug() bool {
	debug := os.Getenv("SKYCAST_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	if err := EnsureDir(dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not create data directory %s: %v\n", dataDir, err)
		return
	}
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: may contain prompts and tool output
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (SKYCAST_DEBUG=%s) ===", os.Getenv("SKYCAST_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

// Load reads the settings file at path, creating it from the template when it
// does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = GetSettingsFilePath()
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	dataDir := cfg.DataDir()
	if err := EnsureDir(dataDir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}
