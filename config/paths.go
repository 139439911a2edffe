package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/linanwx/waitbot/internal/runtimecfg"
)

var (
	overrideMu        sync.RWMutex
	configDirOverride string
)

// SetConfigDir overrides the config directory for this process.
func SetConfigDir(dir string) {
	overrideMu.Lock()
	configDirOverride = strings.TrimSpace(dir)
	overrideMu.Unlock()
}

// ConfigDir returns the waitbot config directory. Precedence: SetConfigDir,
// WAITBOT_CONFIG_DIR, ~/.waitbot.
func ConfigDir() (string, error) {
	overrideMu.RLock()
	dir := configDirOverride
	overrideMu.RUnlock()

	if dir == "" {
		dir = strings.TrimSpace(os.Getenv(runtimecfg.ConfigDirEnv))
	}
	if dir != "" {
		return expandDir(dir)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, runtimecfg.ConfigDirName), nil
}

// ConfigPath returns the default YAML config path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, runtimecfg.ConfigFileName), nil
}

// ResolvePath expands ~ and makes relative paths relative to the config
// directory. Empty input stays empty.
func ResolvePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") || filepath.IsAbs(path) {
		return expandDir(path)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, path), nil
}

func expandDir(dir string) (string, error) {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if dir == "~" {
			return home, nil
		}
		return filepath.Join(home, dir[2:]), nil
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir), nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
