package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr  = ":8000"
	defaultMaxUploadMB = 20
)

// ServerConfig represents the stub backend configuration.
type ServerConfig struct {
	ListenAddr  string         `yaml:"listen_addr"`
	LogLevel    string         `yaml:"log_level"`
	MaxUploadMB int64          `yaml:"max_upload_mb"`
	Businesses  []SeedBusiness `yaml:"businesses"`
}

// SeedBusiness is a business registered at startup so that login works without
// going through registration first.
type SeedBusiness struct {
	Name           string `yaml:"name"`
	WhatsAppNumber string `yaml:"whatsapp_number"`
	OwnerName      string `yaml:"owner_name"`
	BusinessType   string `yaml:"business_type"`
	ResponseStyle  string `yaml:"response_style"`
	Password       string `yaml:"password"`
}

// LoadServerConfig loads the server configuration. A missing file yields defaults.
func LoadServerConfig(configPath string) (*ServerConfig, error) {
	var config ServerConfig
	file, err := os.Open(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	default:
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}
	if config.ListenAddr == "" {
		config.ListenAddr = defaultListenAddr
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = defaultMaxUploadMB
	}
	return &config, nil
}
