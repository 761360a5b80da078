package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	envHome = "RESTSTUDIO_HOME"
	appName = "reststudio"
)

// Dir is $RESTSTUDIO_HOME when set, else reststudio under the user config
// dir, else a dot directory in the working directory.
func Dir() string {
	if dir := strings.TrimSpace(os.Getenv(envHome)); dir != "" {
		return dir
	}
	if base, err := os.UserConfigDir(); err == nil && base != "" {
		return filepath.Join(base, appName)
	}
	return "." + appName
}
