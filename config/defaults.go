package config

import "time"

const (
	DefaultSystemPrompt    = "You are a helpful assistant."
	DefaultMaxOutputTokens = 1000
	DefaultAnthropicModel  = "claude-3-haiku-20240307"
	DefaultSSEURL          = "http://localhost:3001/sse"
	DefaultServerAddr      = ":3001"
)

func Default() *Config {
	return &Config{
		DataDirectory: "~/.local/share/skycast",
		Model: ModelConfig{
			Provider:        "anthropic",
			Model:           DefaultAnthropicModel,
			MaxOutputTokens: DefaultMaxOutputTokens,
			SystemPrompt:    DefaultSystemPrompt,
		},
		Capability: CapabilityConfig{
			ID:               "weather",
			Transport:        "stdio",
			Command:          "skycast",
			Args:             []string{"serve", "--transport", "stdio"},
			HandshakeTimeout: 30 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			MaxToolRounds: 8,
			ParallelLimit: 4,
		},
		Server: ServerConfig{
			Name:      "WeatherMcpDemoServer",
			Version:   "1.1",
			Transport: "stdio",
			Addr:      DefaultServerAddr,
		},
		Profiles: ProfilesConfig{
			Yr: ProfileConfig{
				BaseURL:   "https://api.met.no",
				UserAgent: "skycast-yrweather-tool/1.0",
				Timeout:   20 * time.Second,
			},
			NWS: ProfileConfig{
				BaseURL:   "https://api.weather.gov",
				UserAgent: "skycast-us-weather-tool/1.0",
				Timeout:   20 * time.Second,
			},
			Nominatim: ProfileConfig{
				BaseURL:   "https://nominatim.openstreetmap.org",
				UserAgent: "skycast-nominatim-tool/1.0",
				Timeout:   20 * time.Second,
			},
		},
		Keys: DefaultKeybindings(),
	}
}

func GenerateConfigTemplate() string {
	return `# skycast configuration
# Location: ~/.config/skycast/config.toml (override with SKYCAST_CONFIG)
# This file uses TOML format: https://toml.io

# Directory for the debug log and the weather response cache
data_directory = "~/.local/share/skycast"

[model]
# One of: anthropic, openai, ollama
provider = "anthropic"
model = "claude-3-haiku-20240307"
# API keys are read from ANTHROPIC_API_KEY / OPENAI_API_KEY when empty
api_key = ""
max_output_tokens = 1000
system_prompt = "You are a helpful assistant."

[capability]
id = "weather"
# stdio, sse or streamable-http
transport = "stdio"
command = "skycast"
args = ["serve", "--transport", "stdio"]
# url = "http://localhost:3001/sse"
handshake_timeout = "30s"

# Additional capability servers
# [[capability.servers]]
# id = "other"
# transport = "streamable-http"
# url = "http://localhost:8080/mcp"

[orchestrator]
max_tool_rounds = 8
parallel_tools = false
parallel_limit = 4

[server]
name = "WeatherMcpDemoServer"
version = "1.1"
transport = "stdio"
addr = ":3001"

[profiles.yr]
base_url = "https://api.met.no"
user_agent = "skycast-yrweather-tool/1.0"
timeout = "20s"

[profiles.nws]
base_url = "https://api.weather.gov"
user_agent = "skycast-us-weather-tool/1.0"
timeout = "20s"

[profiles.nominatim]
base_url = "https://nominatim.openstreetmap.org"
user_agent = "skycast-nominatim-tool/1.0"
timeout = "20s"

# Chat view keys. Change the modifiers if they clash with your terminal or
# window manager, or override single actions.
[keys.modifiers]
primary = "alt"
secondary = "alt+shift"

# [keys.actions]
# retry_turn = "ctrl+r"
# tool_palette = "ctrl+t"
`
}
