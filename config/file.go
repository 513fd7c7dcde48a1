//go:build !tinygo

package config

import (
	"fmt"
	"os"
)

// LoadFile reads and parses a JSON configuration file
func LoadFile(path string) (*MotorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
