package config

import (
	"os"
	"path/filepath"
	"strings"
)

// GetConfigDir is ~/.config/skycast on every platform.
func GetConfigDir() string {
	return filepath.Join(GetHomeDir(), ".config", "skycast")
}

// GetSettingsFilePath returns the path to config.toml, honoring SKYCAST_CONFIG.
func GetSettingsFilePath() string {
	if p := os.Getenv("SKYCAST_CONFIG"); p != "" {
		return ExpandPath(p)
	}
	return filepath.Join(GetConfigDir(), "config.toml")
}

// GetHomeDir falls back to the filesystem root when no home is known.
func GetHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return string(filepath.Separator)
	}
	return home
}

// ExpandPath expands a leading ~ and environment variables, then cleans the
// result. The empty path stays empty.
func ExpandPath(path string) string {
	switch {
	case path == "":
		return ""
	case path == "~":
		path = GetHomeDir()
	case strings.HasPrefix(path, "~/"):
		path = filepath.Join(GetHomeDir(), path[2:])
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// EnsureDir creates path with user-only access.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o700)
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
