package config

import (
	"sort"
	"strings"
)

// KeyBindingsConfig holds the chat view's modifier choice and per-action
// overrides.
type KeyBindingsConfig struct {
	Modifiers ModifierConfig    `toml:"modifiers"`
	Actions   map[string]string `toml:"actions,omitempty"`
}

type ModifierConfig struct {
	Primary   string `toml:"primary"`   // alt, ctrl, meta, super
	Secondary string `toml:"secondary"` // alt+shift, ctrl+shift
}

type actionDef struct {
	modifier string // primary, secondary or none
	key      string
}

// actionRegistry is the set of chat view actions and their default keys.
var actionRegistry = map[string]actionDef{
	"quit":               {"primary", "q"},
	"retry_turn":         {"primary", "r"},
	"tool_palette":       {"primary", "t"},
	"yank_last_response": {"primary", "y"},
	"yank_conversation":  {"primary", "c"},
	"clear_input":        {"primary", "u"},

	"scroll_down":    {"primary", "j"},
	"scroll_up":      {"primary", "k"},
	"half_page_down": {"secondary", "j"},
	"half_page_up":   {"secondary", "k"},
	"page_down":      {"none", "pgdown"},
	"page_up":        {"none", "pgup"},

	"palette_down":  {"none", "down"},
	"palette_up":    {"none", "up"},
	"close_palette": {"none", "esc"},
}

func DefaultKeybindings() KeyBindingsConfig {
	return KeyBindingsConfig{
		Modifiers: ModifierConfig{
			Primary:   "alt",
			Secondary: "alt+shift",
		},
	}
}

func (kb KeyBindingsConfig) Primary() string {
	if kb.Modifiers.Primary == "" {
		return "alt"
	}
	return kb.Modifiers.Primary
}

func (kb KeyBindingsConfig) Secondary() string {
	if kb.Modifiers.Secondary == "" {
		return "alt+shift"
	}
	return kb.Modifiers.Secondary
}

// PrimaryKey joins the primary modifier and key, e.g. "alt+r".
func (kb KeyBindingsConfig) PrimaryKey(key string) string {
	return kb.Primary() + "+" + key
}

// SecondaryKey joins the secondary modifier and key. A shifted single letter
// is reported the way terminals deliver it: "alt+J", not "alt+shift+j".
func (kb KeyBindingsConfig) SecondaryKey(key string) string {
	secondary := kb.Secondary()

	if strings.Contains(strings.ToLower(secondary), "shift") && len(key) == 1 && key[0] >= 'a' && key[0] <= 'z' {
		var mods []string
		for _, part := range strings.Split(secondary, "+") {
			if strings.ToLower(part) != "shift" {
				mods = append(mods, part)
			}
		}
		if len(mods) > 0 {
			return strings.Join(mods, "+") + "+" + strings.ToUpper(key)
		}
		return strings.ToUpper(key)
	}

	return secondary + "+" + key
}

// ActionKey returns the binding of action: the user override if present,
// else the registry default. Unknown actions return "".
func (kb KeyBindingsConfig) ActionKey(action string) string {
	if override := kb.Actions[action]; override != "" {
		return override
	}

	def, ok := actionRegistry[action]
	if !ok {
		return ""
	}
	switch def.modifier {
	case "primary":
		return kb.PrimaryKey(def.key)
	case "secondary":
		return kb.SecondaryKey(def.key)
	default:
		return def.key
	}
}

// DisplayActionKey formats a binding for the help line:
// "alt+J" -> "Alt+Shift+J".
func (kb KeyBindingsConfig) DisplayActionKey(action string) string {
	key := kb.ActionKey(action)
	if key == "" {
		return ""
	}
	return displayKey(key)
}

func displayKey(key string) string {
	parts := strings.Split(key, "+")
	hasShift := false
	for _, p := range parts {
		if strings.ToLower(p) == "shift" {
			hasShift = true
		}
	}

	var result []string
	for i, part := range parts {
		if part == "" {
			continue
		}
		if len(part) == 1 && part[0] >= 'A' && part[0] <= 'Z' {
			if !hasShift && i > 0 {
				result = append(result, "Shift")
			}
			result = append(result, part)
			continue
		}
		result = append(result, strings.ToUpper(part[:1])+part[1:])
	}
	return strings.Join(result, "+")
}

// Validate reports whether the modifiers are usable, with a warning for
// combinations that collide with terminal shortcuts.
func (kb KeyBindingsConfig) Validate() (bool, string) {
	primary := kb.Primary()
	secondary := kb.Secondary()

	if primary == "shift" || secondary == "shift" {
		return false, "Shift alone conflicts with typing"
	}
	if strings.Contains(primary, "ctrl") || strings.Contains(secondary, "ctrl") {
		return true, "Warning: Ctrl may conflict with terminal shortcuts (Ctrl+C, Ctrl+Z, Ctrl+D)"
	}
	return true, ""
}

// Actions lists every bindable action name, sorted.
func Actions() []string {
	names := make([]string, 0, len(actionRegistry))
	for name := range actionRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
