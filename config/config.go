// Package config loads runtime settings from an optional YAML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultCacheTTLSeconds is used when DEFAULT_CACHE_TTL_SECONDS is unset or invalid.
const DefaultCacheTTLSeconds = 300

type Config struct {
	Env  string `yaml:"env"`
	Port string `yaml:"port"`

	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	Cache    Cache    `yaml:"cache"`
	Auth     Auth     `yaml:"auth"`
	HTTP     HTTP     `yaml:"http"`
}

type Database struct {
	// Driver is "mysql" or "memory".
	Driver          string `yaml:"driver"`
	Host            string `yaml:"host"`
	Port            string `yaml:"port"`
	User            string `yaml:"user"`
	Pass            string `yaml:"pass"`
	Name            string `yaml:"name"`
	Params          string `yaml:"params"`
	DSN             string `yaml:"dsn"`
	TLS             string `yaml:"tls"`
	TLSVerify       bool   `yaml:"tls_verify"`
	TLSCAPath       string `yaml:"tls_ca_path"`
	TLSClientCert   string `yaml:"tls_client_cert"`
	TLSClientKey    string `yaml:"tls_client_key"`
	ConnectRetries  int    `yaml:"connect_retries"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_sec"`
	PingOnConnect   bool   `yaml:"ping_on_connect"`
	AutoMigrate     bool   `yaml:"auto_migrate"`
}

type Redis struct {
	Addr string `yaml:"addr"`
	Pass string `yaml:"pass"`
	DB   int    `yaml:"db"`
}

type Cache struct {
	DefaultTTLSeconds int `yaml:"default_ttl_seconds"`
}

// DefaultTTL never returns a non-positive duration.
func (c Cache) DefaultTTL() time.Duration {
	if c.DefaultTTLSeconds <= 0 {
		return DefaultCacheTTLSeconds * time.Second
	}
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

type Auth struct {
	JWTSecret string `yaml:"-"`
	Audience  string `yaml:"audience"`
	Issuer    string `yaml:"issuer"`
}

type HTTP struct {
	RequestTimeoutSec int      `yaml:"request_timeout_sec"`
	MaxBodyBytes      int64    `yaml:"max_body_bytes"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	TrustedProxies    []string `yaml:"trusted_proxies"`
	// WriteRateLimit is the number of mutating requests a caller may make
	// per RateWindowSec.
	WriteRateLimit int `yaml:"write_rate_limit"`
	RateWindowSec  int `yaml:"rate_window_sec"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Env:  "development",
		Port: "8080",
		Database: Database{
			Driver:          "mysql",
			Host:            "127.0.0.1",
			Port:            "3306",
			User:            "root",
			Name:            "quests",
			Params:          "charset=utf8mb4&parseTime=True&loc=Local",
			TLS:             "false",
			ConnectRetries:  5,
			MaxOpenConns:    25,
			MaxIdleConns:    25,
			ConnMaxLifetime: 3600,
			PingOnConnect:   true,
		},
		Cache: Cache{DefaultTTLSeconds: DefaultCacheTTLSeconds},
		HTTP: HTTP{
			RequestTimeoutSec: 10,
			MaxBodyBytes:      1 << 20,
			WriteRateLimit:    60,
			RateWindowSec:     60,
		},
	}
}

// Load reads CONFIG_FILE (if set), then .env (without overriding variables
// already present in the environment), then the environment itself.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if envMap, err := godotenv.Read(); err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Env = strings.ToLower(getenv("ENV", c.Env))
	c.Port = getenv("PORT", c.Port)

	d := &c.Database
	d.Driver = strings.ToLower(getenv("DB_DRIVER", d.Driver))
	d.Host = getenv("DB_HOST", d.Host)
	d.Port = getenv("DB_PORT", d.Port)
	d.User = getenv("DB_USER", d.User)
	d.Pass = getenv("DB_PASS", d.Pass)
	d.Name = getenv("DB_NAME", d.Name)
	d.Params = getenv("DB_PARAMS", d.Params)
	d.DSN = getenv("DB_DSN", d.DSN)
	d.TLS = strings.ToLower(getenv("DB_TLS", d.TLS))
	d.TLSVerify = getenvBool("DB_TLS_VERIFY", d.TLSVerify)
	d.TLSCAPath = getenv("DB_TLS_CA_PATH", d.TLSCAPath)
	d.TLSClientCert = getenv("DB_TLS_CLIENT_CERT", d.TLSClientCert)
	d.TLSClientKey = getenv("DB_TLS_CLIENT_KEY", d.TLSClientKey)
	d.ConnectRetries = getenvInt("DB_CONNECT_RETRIES", d.ConnectRetries)
	d.MaxOpenConns = getenvInt("DB_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getenvInt("DB_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = getenvInt("DB_CONN_MAX_LIFETIME", d.ConnMaxLifetime)
	d.PingOnConnect = getenvBool("DB_PING_ON_CONNECT", d.PingOnConnect)
	d.AutoMigrate = getenvBool("AUTO_MIGRATE", d.AutoMigrate || c.Env == "development")

	c.Redis.Addr = strings.ReplaceAll(getenv("REDIS_ADDR", c.Redis.Addr), " ", "")
	c.Redis.Pass = getenv("REDIS_PASS", c.Redis.Pass)
	c.Redis.DB = getenvInt("REDIS_DB", c.Redis.DB)

	c.Cache.DefaultTTLSeconds = getenvInt("DEFAULT_CACHE_TTL_SECONDS", c.Cache.DefaultTTLSeconds)

	c.Auth.JWTSecret = getenv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Audience = getenv("JWT_AUD", c.Auth.Audience)
	c.Auth.Issuer = getenv("JWT_ISS", c.Auth.Issuer)

	c.HTTP.RequestTimeoutSec = getenvInt("REQ_TIMEOUT_SEC", c.HTTP.RequestTimeoutSec)
	if v := getenvInt("MAX_BODY_BYTES", 0); v > 0 {
		c.HTTP.MaxBodyBytes = int64(v)
	}
	c.HTTP.WriteRateLimit = getenvInt("RATE_WRITE_LIMIT", c.HTTP.WriteRateLimit)
	c.HTTP.RateWindowSec = getenvInt("RATE_WINDOW_SEC", c.HTTP.RateWindowSec)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.HTTP.AllowedOrigins = splitList(origins)
	}
	if proxies := os.Getenv("TRUSTED_PROXIES"); proxies != "" {
		c.HTTP.TrustedProxies = splitList(proxies)
	}
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "memory":
	default:
		return fmt.Errorf("DB_DRIVER must be mysql or memory, got %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	if c.Cache.DefaultTTLSeconds <= 0 {
		return fmt.Errorf("DEFAULT_CACHE_TTL_SECONDS must be positive, got %d", c.Cache.DefaultTTLSeconds)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// getenvInt keeps def when the variable is unset or not a positive integer.
func getenvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getenvBool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}
