// Package config handles the XDG configuration directory, stored credentials
// and user settings.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// AppName is the application directory name.
	AppName = "taskbin"

	// CredentialFile holds the raw id_token from the identity provider.
	CredentialFile = "id_token"

	// SettingsFile is the optional YAML settings file.
	SettingsFile = "config.yaml"

	// EnvFile is the optional dotenv file, read from the working directory
	// and the config directory.
	EnvFile = ".env"

	// GoogleClientFile is the Google OAuth client used by import.
	GoogleClientFile = "google_client.json"

	// GoogleTokenFile is the stored Google OAuth token used by import.
	GoogleTokenFile = "google_token.json"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// Settings are loaded from config.yaml, .env and the environment.
	Settings Settings
}

// New creates a new Config with the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/taskbin or $HOME/.config/taskbin.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	return &Config{Dir: dir, Settings: DefaultSettings()}, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// CredentialPath returns the path to the stored id_token.
func (c *Config) CredentialPath() string {
	return filepath.Join(c.Dir, CredentialFile)
}

// SettingsPath returns the path to config.yaml.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, SettingsFile)
}

// GoogleClientPath returns the path to the Google OAuth client file.
func (c *Config) GoogleClientPath() string {
	return filepath.Join(c.Dir, GoogleClientFile)
}

// GoogleTokenPath returns the path to the stored Google token.
func (c *Config) GoogleTokenPath() string {
	return filepath.Join(c.Dir, GoogleTokenFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasCredential checks if an id_token is stored.
func (c *Config) HasCredential() bool {
	_, err := os.Stat(c.CredentialPath())
	return err == nil
}

// ReadCredential returns the stored id_token with surrounding whitespace removed.
func (c *Config) ReadCredential() (string, error) {
	data, err := os.ReadFile(c.CredentialPath())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveCredential writes the id_token with mode 0600.
func (c *Config) SaveCredential(token string) error {
	if err := c.EnsureDir(); err != nil {
		return err
	}
	return os.WriteFile(c.CredentialPath(), []byte(token+"\n"), 0600)
}

// RemoveCredential deletes the stored id_token.
func (c *Config) RemoveCredential() error {
	return os.Remove(c.CredentialPath())
}

// HasGoogleClient checks if the Google OAuth client file exists.
func (c *Config) HasGoogleClient() bool {
	_, err := os.Stat(c.GoogleClientPath())
	return err == nil
}

// HasGoogleToken checks if a Google token is stored.
func (c *Config) HasGoogleToken() bool {
	_, err := os.Stat(c.GoogleTokenPath())
	return err == nil
}
