package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - VORTEX_CONFIG_PATH: config file location (default: <user config dir>/vortex/vortex.toml)
//   - VORTEX_HOME: base directory for vortex data (default: <user config dir>/vortex)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking VORTEX_CONFIG_PATH first.
func getConfigPath() (string, error) {
	if path := os.Getenv("VORTEX_CONFIG_PATH"); path != "" {
		return path, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(dir, "vortex", "vortex.toml"), nil
}

// getBaseDir returns the base directory for vortex data, checking VORTEX_HOME first.
// On Windows the default lands under %AppData%.
func getBaseDir() (string, error) {
	if path := os.Getenv("VORTEX_HOME"); path != "" {
		return path, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(dir, "vortex"), nil
}
