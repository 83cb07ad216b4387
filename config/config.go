package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "LEADSDASH_"

type ServerConfig struct {
	Port            int      `toml:"port"`
	ReadTimeout     Duration `toml:"read_timeout"`
	PageSize        int      `toml:"page_size"`
	LogLevel        string   `toml:"log_level"`
	DefaultLanguage string   `toml:"default_language"`
	Timezone        string   `toml:"timezone"` // used for created_at dates
}

type APIConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

type SessionConfig struct {
	Expiration    Duration `toml:"expiration"`
	CookieName    string   `toml:"cookie_name"`
	CookieSecure  bool     `toml:"cookie_secure"`
	Driver        string   `toml:"driver"` // "bolt" or "redis"
	DataDir       string   `toml:"data_dir"`
	EncryptionKey string   `toml:"encryption_key"` // 32 bytes, hex or raw; empty disables encryption
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

type RateLimitConfig struct {
	Requests int      `toml:"requests"`
	Window   Duration `toml:"window"`
}

type Config struct {
	Server    ServerConfig    `toml:"server"`
	API       APIConfig       `toml:"api"`
	Session   SessionConfig   `toml:"session"`
	Redis     RedisConfig     `toml:"redis"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// Duration lets TOML files use strings such as "30s"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file overrides a value
func Default() *Config {
	var config Config

	config.Server.Port = 3000
	config.Server.ReadTimeout = Duration{30 * time.Second}
	config.Server.PageSize = 10
	config.Server.LogLevel = "info"
	config.Server.DefaultLanguage = "es"
	config.Server.Timezone = "America/Argentina/Buenos_Aires"

	config.API.BaseURL = "http://127.0.0.1:8000"
	config.API.Timeout = Duration{15 * time.Second}

	config.Session.Expiration = Duration{24 * time.Hour}
	config.Session.CookieName = "leadsdash_session"
	config.Session.Driver = "bolt"
	config.Session.DataDir = "./data"

	config.Redis.Addr = "127.0.0.1:6379"
	config.Redis.Prefix = "leadsdash:"

	config.RateLimit.Requests = 10
	config.RateLimit.Window = Duration{time.Minute}

	return &config
}

// LoadConfig reads the TOML file at filepath (optional when empty or
// missing), then a .env file, then LEADSDASH_* environment variables.
func LoadConfig(filepath string) (*Config, error) {
	config := Default()

	if filepath != "" {
		if _, err := toml.DecodeFile(filepath, config); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *Duration) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		return dst.UnmarshalText([]byte(v))
	}

	str("API_URL", &c.API.BaseURL)
	str("LOG_LEVEL", &c.Server.LogLevel)
	str("LANGUAGE", &c.Server.DefaultLanguage)
	str("SESSION_DRIVER", &c.Session.Driver)
	str("SESSION_DIR", &c.Session.DataDir)
	str("SESSION_KEY", &c.Session.EncryptionKey)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)

	if v, ok := lookup(EnvPrefix + "COOKIE_SECURE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sCOOKIE_SECURE: %w", EnvPrefix, err)
		}
		c.Session.CookieSecure = b
	}

	for key, dst := range map[string]*int{"PORT": &c.Server.Port, "PAGE_SIZE": &c.Server.PageSize, "REDIS_DB": &c.Redis.DB} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	if err := dur("API_TIMEOUT", &c.API.Timeout); err != nil {
		return fmt.Errorf("%sAPI_TIMEOUT: %w", EnvPrefix, err)
	}
	if err := dur("SESSION_EXPIRATION", &c.Session.Expiration); err != nil {
		return fmt.Errorf("%sSESSION_EXPIRATION: %w", EnvPrefix, err)
	}

	return nil
}

// Validate checks the values LoadConfig cannot default
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.PageSize <= 0 {
		return fmt.Errorf("server.page_size must be positive, got %d", c.Server.PageSize)
	}
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("server.timezone: %w", err)
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")

	switch c.Session.Driver {
	case "bolt":
		if c.Session.DataDir == "" {
			return fmt.Errorf("session.data_dir is required for the bolt driver")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("session.driver must be bolt or redis, got %q", c.Session.Driver)
	}

	if c.Session.Expiration.Duration <= 0 {
		return fmt.Errorf("session.expiration must be positive")
	}
	if _, err := c.Session.Key(); err != nil {
		return err
	}

	return nil
}

// Key decodes the session encryption key. A nil key means encryption is off.
func (s SessionConfig) Key() (*[32]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil
	}

	var key [32]byte
	raw := []byte(s.EncryptionKey)
	if len(raw) == 64 {
		if decoded, err := hex.DecodeString(s.EncryptionKey); err == nil {
			copy(key[:], decoded)
			return &key, nil
		}
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("session.encryption_key must be 32 bytes or 64 hex characters")
	}
	copy(key[:], raw)
	return &key, nil
}

// Location returns the timezone dates are rendered in
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
