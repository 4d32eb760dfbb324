// Package config loads process configuration: built-in defaults, then an
// optional TOML file, then STREAKTOOT_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/julianstephens/streaktoot/internal/constants"
	"github.com/julianstephens/streaktoot/internal/credentials"
	"github.com/julianstephens/streaktoot/internal/kvstore"
	"github.com/julianstephens/streaktoot/internal/mastodon"
)

type Config struct {
	// Store is a SQLite path, a postgres:// URL or diskv://<dir>.
	Store   string      `koanf:"store"`
	Debug   bool        `koanf:"debug"`
	Keyring bool        `koanf:"keyring"`
	HTTP    HTTPConfig  `koanf:"http"`
	OAuth   OAuthConfig `koanf:"oauth"`

	// File is the config file that was read, empty when none was.
	File string `koanf:"-"`
}

type HTTPConfig struct {
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`
	Burst     int           `koanf:"burst"`
	UserAgent string        `koanf:"user_agent"`
}

type OAuthConfig struct {
	ClientName  string `koanf:"client_name"`
	Website     string `koanf:"website"`
	RedirectURI string `koanf:"redirect_uri"`
	Scopes      string `koanf:"scopes"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"store":              constants.DefaultConfigPath,
		"debug":              false,
		"keyring":            true,
		"http.timeout":       constants.DefaultHTTPTimeout.String(),
		"http.rate_limit":    constants.DefaultRateLimit,
		"http.burst":         constants.DefaultBurst,
		"http.user_agent":    "",
		"oauth.client_name":  constants.DefaultClientName,
		"oauth.website":      "",
		"oauth.redirect_uri": constants.OOBRedirectURI,
		"oauth.scopes":       constants.DefaultScopes,
	}
}

// envKey maps STREAKTOOT_HTTP_RATE_LIMIT to http.rate_limit. Only the first
// underscore separates the section from the key.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, constants.EnvPrefix)), "_", ".", 1)
}

// Load reads the configuration. An explicit path must exist; when path is
// empty the default file is read only if present.
func Load(path string) (*Config, error) {
	var k = koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = constants.DefaultConfigFile
	}
	expanded, err := kvstore.ExpandPath(path)
	if err != nil {
		return nil, err
	}

	loaded := ""
	if _, err := os.Stat(expanded); err == nil {
		if err := k.Load(file.Provider(expanded), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
		loaded = expanded
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", expanded, err)
	}

	if err := k.Load(env.Provider(constants.EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	cfg.File = loaded

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Store) == "" {
		return errors.New("store location is required")
	}
	if cfg.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %s", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.RateLimit <= 0 {
		return fmt.Errorf("http.rate_limit must be positive, got %v", cfg.HTTP.RateLimit)
	}
	if cfg.HTTP.Burst < 1 {
		return fmt.Errorf("http.burst must be at least 1, got %d", cfg.HTTP.Burst)
	}
	return nil
}

// Mastodon is the HTTP client configuration.
func (c *Config) Mastodon() mastodon.Config {
	return mastodon.Config{
		Timeout:   c.HTTP.Timeout,
		RateLimit: c.HTTP.RateLimit,
		Burst:     c.HTTP.Burst,
		UserAgent: c.HTTP.UserAgent,
	}
}

// Credentials is the OAuth application registered on each instance.
func (c *Config) Credentials() credentials.Options {
	return credentials.Options{
		ClientName:  c.OAuth.ClientName,
		Website:     c.OAuth.Website,
		RedirectURI: c.OAuth.RedirectURI,
		Scopes:      c.OAuth.Scopes,
	}
}

// Dir is the directory holding the config file and logs.
func Dir() (string, error) {
	path, err := kvstore.ExpandPath(constants.DefaultConfigFile)
	if err != nil {
		return "", err
	}
	return filepath.Dir(path), nil
}

// InitConfig writes a commented sample configuration file.
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	sampleConfig := `# streaktoot configuration
# Every key can be overridden with a STREAKTOOT_ variable, e.g. STREAKTOOT_HTTP_TIMEOUT=10s

# SQLite path, postgres:// URL or diskv://<dir>
store = "` + constants.DefaultConfigPath + `"
debug = false
# Keep the access token in the OS keyring instead of the store
keyring = true

[http]
timeout = "30s"
rate_limit = 1.0
burst = 5

[oauth]
client_name = "` + constants.DefaultClientName + `"
redirect_uri = "` + constants.OOBRedirectURI + `"
scopes = "` + constants.DefaultScopes + `"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}
