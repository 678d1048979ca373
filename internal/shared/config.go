package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Client    ClientConfig    `toml:"client"`
	OAuth     OAuthConfig     `toml:"oauth"`
	Endpoints EndpointsConfig `toml:"endpoints"`
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Upload    UploadConfig    `toml:"upload"`
}

// ClientConfig identifies this installation to the streaming service.
type ClientConfig struct {
	Name       string `toml:"name"`
	Version    string `toml:"version"`
	DeviceName string `toml:"device_name"`
}

// OAuthConfig contains OAuth application settings.
type OAuthConfig struct {
	ClientID    string   `toml:"client_id"`
	Scopes      []string `toml:"scopes"`
	RedirectURI string   `toml:"redirect_uri"`
	BaseURL     string   `toml:"base_url"`
}

// EndpointsConfig overrides the service endpoints. Useful for testing
// against a local stub; leave the defaults in place otherwise.
type EndpointsConfig struct {
	API     string `toml:"api"`
	Library string `toml:"library"`
	Sync    string `toml:"sync"`
	Upload  string `toml:"upload"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// UploadConfig contains bulk upload settings.
type UploadConfig struct {
	Workers    int `toml:"workers"`
	RatePerSec int `toml:"rate_per_sec"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
