package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Backend drivers.
const (
	BackendSQLite = "sqlite"
	BackendREST   = "rest"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Backend BackendConfig     `yaml:"backend"`
	Router  RouterConfig      `yaml:"router"`
	Weather WeatherConfig     `yaml:"weather"`
	Tushare TushareConfig     `yaml:"tushare"`
	Inbox   InboxConfig       `yaml:"inbox"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Backend.Validate(); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	if err := c.Weather.Validate(); err != nil {
		return fmt.Errorf("weather: %w", err)
	}
	if err := c.Tushare.Validate(); err != nil {
		return fmt.Errorf("tushare: %w", err)
	}
	if err := c.Inbox.Validate(); err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// BasePath mounts every page under a prefix, e.g. "/study".
	BasePath string     `yaml:"base_path"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.BasePath, validation.By(func(any) error {
			if c.BasePath != "" && !strings.HasPrefix(c.BasePath, "/") {
				return errors.New("must start with /")
			}
			return nil
		})),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// BackendConfig selects and configures the remote data gateway.
//
// Driver "sqlite" (default) keeps everything in a local database file.
// Driver "rest" talks to a hosted project at URL with AnonKey.
type BackendConfig struct {
	Driver  string       `yaml:"driver"`
	URL     string       `yaml:"url"`
	AnonKey string       `yaml:"anon_key"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
}

// Validate validates the backend configuration.
func (c *BackendConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = BackendSQLite
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(BackendSQLite, BackendREST)),
	); err != nil {
		return err
	}
	if c.Driver == BackendSQLite {
		return c.SQLite.Validate()
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.AnonKey, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// RouterConfig tunes the navigation guard.
type RouterConfig struct {
	// TrustCachedSession makes the guard read the session state kept up to
	// date by change notifications instead of asking the backend on every
	// navigation.
	TrustCachedSession bool `yaml:"trust_cached_session"`
}

// WeatherConfig configures the forecast provider.
type WeatherConfig struct {
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	City     string `yaml:"city"`
	Timezone string `yaml:"timezone"`
}

// Validate validates the weather configuration.
func (c *WeatherConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, is.URL),
		validation.Field(&c.Timezone, validation.By(func(any) error {
			_, err := c.Location()
			return err
		})),
	)
}

// Location resolves Timezone, defaulting to the local zone.
func (c *WeatherConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// TushareConfig configures the financial data provider.
type TushareConfig struct {
	Token string `yaml:"token"`
	URL   string `yaml:"url"`
}

// Validate validates the provider configuration.
func (c *TushareConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, is.URL),
	)
}

// InboxConfig configures the Markdown study-note inbox.
type InboxConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Backend: BackendConfig{
			Driver: BackendSQLite,
			SQLite: SQLiteConfig{
				Path: "./studytrack.db",
			},
		},
		Weather: WeatherConfig{
			BaseURL:  "https://api.openweathermap.org/data/2.5/forecast",
			City:     "Hefei",
			Timezone: "Asia/Shanghai",
		},
		Tushare: TushareConfig{
			URL: "http://api.tushare.pro",
		},
		Inbox: InboxConfig{
			Path: "./inbox",
		},
	}
}
