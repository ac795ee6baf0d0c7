package conf

import (
	"crypto/rand"
	"encoding/base64"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/scribe-notes/scribe/internal/errors"
)

const osWindows = "windows"

// GetDefaultConfigPaths returns the default configuration paths for the
// current operating system, preferring a path that already holds a
// config.yaml.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfig).
			Context("operation", "get-executable-path").
			Build()
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfig).
			Context("operation", "get-home-directory").
			Build()
	}

	switch runtime.GOOS {
	case osWindows:
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "scribe"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "scribe"),
			"/etc/scribe",
		}
	}

	// Prefer a path that already has a config file
	for i, path := range configPaths {
		configFile := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFile); err == nil {
			if i != 0 {
				configPaths[0], configPaths[i] = configPaths[i], configPaths[0]
			}
			break
		}
	}

	return configPaths, nil
}

// GetBasePath expands a possibly relative directory against the first
// default config path, creating it if needed.
func GetBasePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return path
	}
	basePath := filepath.Join(configPaths[0], path)
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		log.Printf("Failed to create directory %s: %v", basePath, err)
	}
	return basePath
}

// GenerateRandomSecret returns a URL-safe random secret suitable for
// session cookie signing.
func GenerateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Printf("Failed to generate random secret: %v", err)
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
