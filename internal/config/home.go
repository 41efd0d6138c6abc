package config

import (
	"os"
	"path/filepath"
	"strings"
)

// EnvHome overrides the studio home directory.
const EnvHome = "STUDIO_HOME"

const homeDirName = "contentforge-studio"

// HomeDir is where runtime files (logs, local caches) live: $STUDIO_HOME, then
// the user config directory, then the working directory.
func HomeDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvHome)); dir != "" {
		return filepath.Clean(dir)
	}
	if base, err := os.UserConfigDir(); err == nil && base != "" {
		return filepath.Join(base, homeDirName)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// ResolveRuntimePath resolves a configured path against HomeDir. An empty raw
// path selects sub.
func ResolveRuntimePath(raw, sub string) string {
	target := strings.TrimSpace(raw)
	if target == "" {
		target = sub
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Join(HomeDir(), target)
}
