package config

import (
	"os"
	"path/filepath"
)

// EnvConfig overrides the config file location.
const EnvConfig = "GATECTL_CONFIG"

// GetConfigPath returns the configuration file path: the GATECTL_CONFIG
// environment variable if set, else ~/.gatectl/config.
func GetConfigPath() (string, error) {
	if configPath := os.Getenv(EnvConfig); configPath != "" {
		return configPath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".gatectl", "config"), nil
}
