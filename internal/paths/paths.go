// Package paths resolves the configuration, data and cache directories of
// extendctl. Each directory follows the same precedence chain: flag, then the
// config.yaml value where one exists, then the environment, then the
// platform default.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// appName names the per-user directories.
const appName = "extend"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "EXTEND_CONFIG_DIR"
	EnvDataDir   = "EXTEND_DATA_DIR"
	EnvCacheDir  = "EXTEND_CACHE_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	userCacheDir  func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	userCacheDir:  os.UserCacheDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/extend (fallback ~/.config/extend)
// macOS:   ~/Library/Application Support/extend
// Windows: %APPDATA%/extend
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/extend (fallback ~/.local/share/extend)
// macOS:   ~/Library/Application Support/extend
// Windows: %APPDATA%/extend
func DefaultDataDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// DefaultCacheDir returns the platform-specific default cache directory,
// which holds generated classes and the schema dump.
//
// Linux:   $XDG_CACHE_HOME/extend (fallback ~/.cache/extend)
// macOS:   ~/Library/Caches/extend
// Windows: %LocalAppData%/extend
func DefaultCacheDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_CACHE_HOME", ".cache")
	}
	dir, err := platformDir.userCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

func xdgDir(env, homeRel string) (string, error) {
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeRel, appName), nil
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > EXTEND_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	return resolve(flag, "", EnvConfigDir, DefaultConfigDir)
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > configYAMLValue > EXTEND_DATA_DIR env > DefaultDataDir().
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	return resolve(flag, configYAMLValue, EnvDataDir, DefaultDataDir)
}

// ResolveCacheDir returns the cache directory following the precedence chain:
// flag > configYAMLValue > EXTEND_CACHE_DIR env > DefaultCacheDir().
func ResolveCacheDir(flag, configYAMLValue string) (string, error) {
	return resolve(flag, configYAMLValue, EnvCacheDir, DefaultCacheDir)
}

func resolve(flag, configValue, env string, fallback func() (string, error)) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	if v := os.Getenv(env); v != "" {
		return filepath.Abs(v)
	}
	return fallback()
}
