package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TASKBIN_"

const (
	defaultRequestTimeout = 10 * time.Second
	defaultMockSecret     = "taskbin-mock"
	defaultMockAddr       = "127.0.0.1:0"
)

// Settings are the user-editable options.
type Settings struct {
	// APIBaseURL is the REST backend root, e.g. https://api.example.com/prod.
	APIBaseURL string `yaml:"api_base_url"`

	// PushURL is the websocket endpoint. When empty it is derived from the
	// mock server address in mock mode.
	PushURL string `yaml:"push_url"`

	// UseMock starts an in-process mock backend instead of calling APIBaseURL.
	UseMock bool `yaml:"use_mock"`

	// JWKSURL enables signature verification of the stored id_token.
	JWKSURL string `yaml:"jwks_url"`

	// RequestTimeout bounds each gateway call.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	OAuth OAuthSettings `yaml:"oauth"`
	Mock  MockSettings  `yaml:"mock"`
}

// OAuthSettings describe the hosted login UI.
type OAuthSettings struct {
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
}

// MockSettings configure the mock backend.
type MockSettings struct {
	Addr     string `yaml:"addr"`
	DBPath   string `yaml:"db_path"` // empty keeps data in memory
	Secret   string `yaml:"secret"`  // HS256 key for mock id_tokens
	RedisURL string `yaml:"redis_url"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		RequestTimeout: defaultRequestTimeout,
		OAuth: OAuthSettings{
			Scopes: []string{"openid", "email", "profile"},
		},
		Mock: MockSettings{
			Addr:   defaultMockAddr,
			Secret: defaultMockSecret,
		},
	}
}

// Timeout returns the per-request timeout, falling back to the default.
func (s Settings) Timeout() time.Duration {
	if s.RequestTimeout <= 0 {
		return defaultRequestTimeout
	}
	return s.RequestTimeout
}

// MockSecret returns the mock signing key, falling back to the default.
func (s Settings) MockSecret() string {
	if s.Mock.Secret == "" {
		return defaultMockSecret
	}
	return s.Mock.Secret
}

// Load reads settings in increasing precedence: defaults, config.yaml,
// .env files (working directory, then config dir), then TASKBIN_* variables
// from the process environment.
func (c *Config) Load() error {
	s := DefaultSettings()

	data, err := os.ReadFile(c.SettingsPath())
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid %s: %w", SettingsFile, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("failed to read %s: %w", SettingsFile, err)
	}

	env := map[string]string{}
	for _, path := range []string{EnvFile, filepath.Join(c.Dir, EnvFile)} {
		vals, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("invalid %s: %w", path, err)
		}
		for k, v := range vals {
			env[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}

	if err := s.apply(env); err != nil {
		return err
	}
	c.Settings = s
	return nil
}

// apply overlays TASKBIN_* values.
func (s *Settings) apply(env map[string]string) error {
	str := map[string]*string{
		"API_BASE_URL":        &s.APIBaseURL,
		"PUSH_URL":            &s.PushURL,
		"JWKS_URL":            &s.JWKSURL,
		"OAUTH_AUTH_URL":      &s.OAuth.AuthURL,
		"OAUTH_TOKEN_URL":     &s.OAuth.TokenURL,
		"OAUTH_CLIENT_ID":     &s.OAuth.ClientID,
		"OAUTH_CLIENT_SECRET": &s.OAuth.ClientSecret,
		"MOCK_ADDR":           &s.Mock.Addr,
		"MOCK_DB":             &s.Mock.DBPath,
		"MOCK_SECRET":         &s.Mock.Secret,
		"MOCK_REDIS_URL":      &s.Mock.RedisURL,
	}
	for key, dst := range str {
		if v, ok := env[EnvPrefix+key]; ok {
			*dst = v
		}
	}

	if v, ok := env[EnvPrefix+"USE_MOCK"]; ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sUSE_MOCK: %q", EnvPrefix, v)
		}
		s.UseMock = b
	}
	if v, ok := env[EnvPrefix+"REQUEST_TIMEOUT"]; ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid %sREQUEST_TIMEOUT: %q", EnvPrefix, v)
		}
		s.RequestTimeout = d
	}
	if v, ok := env[EnvPrefix+"OAUTH_SCOPES"]; ok && v != "" {
		s.OAuth.Scopes = strings.Fields(strings.ReplaceAll(v, ",", " "))
	}
	return nil
}
