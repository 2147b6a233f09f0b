// Package config loads vfeed settings from ~/.config/vfeed/config.yml with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/guiyumin/vfeed/internal/twitter"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	appName  = "vfeed"
	fileName = "config.yml"
)

// Config is the full vfeed configuration
type Config struct {
	Port            int           `yaml:"port" mapstructure:"port"`
	Twitter         TwitterConfig `yaml:"twitter" mapstructure:"twitter"`
	Cache           CacheConfig   `yaml:"cache" mapstructure:"cache"`
	RefreshInterval int           `yaml:"refresh_interval" mapstructure:"refresh_interval"`
	FetchTimeout    int           `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	Proxy           string        `yaml:"proxy,omitempty" mapstructure:"proxy"`
	StaticDir       string        `yaml:"static_dir,omitempty" mapstructure:"static_dir"`
	Log             LogConfig     `yaml:"log" mapstructure:"log"`
}

// TwitterConfig holds the subject and the opaque credential bundle
type TwitterConfig struct {
	UserID      string `yaml:"user_id,omitempty" mapstructure:"user_id"`
	Cookie      string `yaml:"cookie,omitempty" mapstructure:"cookie"`
	BearerToken string `yaml:"bearer_token,omitempty" mapstructure:"bearer_token"`
	Endpoint    string `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	UserAgent   string `yaml:"user_agent,omitempty" mapstructure:"user_agent"`
}

type CacheConfig struct {
	File             string `yaml:"file" mapstructure:"file"`
	Expire           int    `yaml:"expire" mapstructure:"expire"` // seconds
	OverwriteOnEmpty bool   `yaml:"overwrite_on_empty" mapstructure:"overwrite_on_empty"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// field binds a config key to its environment variable and default value
type field struct {
	key   string
	env   string
	value any
}

var fields = []field{
	{"port", "PORT", 10000},
	{"twitter.user_id", "X_USER_ID", ""},
	{"twitter.cookie", "X_COOKIE", ""},
	{"twitter.bearer_token", "X_BEARER_TOKEN", ""},
	{"twitter.endpoint", "X_ENDPOINT", twitter.DefaultEndpoint},
	{"twitter.user_agent", "X_USER_AGENT", ""},
	{"cache.file", "CACHE_FILE", "videos.json"},
	{"cache.expire", "CACHE_EXPIRE", 6000},
	{"cache.overwrite_on_empty", "CACHE_OVERWRITE_ON_EMPTY", false},
	{"refresh_interval", "REFRESH_INTERVAL", 0},
	{"fetch_timeout", "FETCH_TIMEOUT", 20},
	{"proxy", "PROXY", ""},
	{"static_dir", "STATIC_DIR", ""},
	{"log.level", "LOG_LEVEL", "info"},
	{"log.json", "LOG_JSON", false},
}

// Env returns the environment variable that overrides key, or "" if none does
func Env(key string) string {
	for _, f := range fields {
		if f.key == key {
			return f.env
		}
	}
	return ""
}

// DefaultConfig returns a config with every default applied
func DefaultConfig() *Config {
	cfg, err := decode(newViper(afero.NewMemMapFs(), false))
	if err != nil {
		// defaults are static; a decode failure is a programming error
		panic(err)
	}
	return cfg
}

// ConfigDir returns ~/.config/vfeed
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", appName)
	}
	return filepath.Join(home, ".config", appName)
}

// SavePath returns the path of the config file
func SavePath() string {
	return filepath.Join(ConfigDir(), fileName)
}

// Exists reports whether the config file exists
func Exists() bool {
	ok, _ := afero.Exists(afero.NewOsFs(), SavePath())
	return ok
}

// LoadOrDefault loads the config file at SavePath with environment
// overrides. A file that cannot be read or does not validate is reported on
// warn and ignored, leaving defaults plus environment.
func LoadOrDefault(fs afero.Fs, warn io.Writer) *Config {
	cfg, err := Load(fs, SavePath())
	if err == nil {
		return cfg
	}
	fmt.Fprintf(warn, "Warning: ignoring config file %s: %v\n", SavePath(), err)

	cfg, err = decode(newViper(afero.NewMemMapFs(), true))
	if err != nil || cfg.Validate() != nil {
		return DefaultConfig()
	}
	return cfg
}

// Load reads path from fs, then applies environment overrides. A missing
// file is not an error.
func Load(fs afero.Fs, path string) (*Config, error) {
	return load(fs, path, true)
}

// ReadFile reads path without environment overrides. Commands that edit the
// file use it so that values from the environment are not written back.
func ReadFile(fs afero.Fs, path string) (*Config, error) {
	return load(fs, path, false)
}

func load(fs afero.Fs, path string, withEnv bool) (*Config, error) {
	v := newViper(fs, withEnv)
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, err
	}
	if exists {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func newViper(fs afero.Fs, withEnv bool) *viper.Viper {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("yaml")
	for _, f := range fields {
		v.SetDefault(f.key, f.value)
		if withEnv {
			_ = v.BindEnv(f.key, f.env)
		}
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Twitter.UserID = strings.TrimSpace(cfg.Twitter.UserID)
	return &cfg, nil
}

// Save writes cfg to SavePath on fs
func Save(fs afero.Fs, cfg *Config) error {
	return SaveTo(fs, SavePath(), cfg)
}

// SaveTo writes cfg as YAML. The file holds credentials, so it is only
// readable by the owner.
func SaveTo(fs afero.Fs, path string, cfg *Config) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects values no component can run with
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Cache.Expire < 0 {
		errs = append(errs, fmt.Errorf("cache.expire must not be negative"))
	}
	if c.RefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("refresh_interval must not be negative"))
	}
	if c.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("fetch_timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// TTL is the cache expiry
func (c *Config) TTL() time.Duration {
	return time.Duration(c.Cache.Expire) * time.Second
}

// RefreshEvery is the background refresh interval; zero disables it
func (c *Config) RefreshEvery() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Second
}

func (c *Config) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

// Query returns the upstream query for the configured subject
func (c *Config) Query() twitter.Query {
	return twitter.Query{
		SubjectID: c.Twitter.UserID,
		Credentials: twitter.Credentials{
			Cookie:      c.Twitter.Cookie,
			BearerToken: c.Twitter.BearerToken,
		},
	}
}
