// Package config provides runtime configuration values for the service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Config holds configuration knobs for the HTTP server, the document store
// and provisioning.
type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	StoreBackend    string        `yaml:"store_backend"`
	MongoHost       string        `yaml:"mongo_host"`
	MongoPort       int           `yaml:"mongo_port"`
	MongoAuthSource string        `yaml:"mongo_auth_source"`
	MongoAdminURI   string        `yaml:"mongo_admin_uri"`
	Database        string        `yaml:"database"`
	Collection      string        `yaml:"collection"`
	LoginTimeout    time.Duration `yaml:"login_timeout"`

	SeedUser     string `yaml:"seed_user"`
	SeedPassword string `yaml:"seed_password"`
	SeedCount    int    `yaml:"seed_count"`

	PageSize      int    `yaml:"page_size"`
	SessionSecret string `yaml:"session_secret"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		HTTPAddr:        ":8050",
		ShutdownTimeout: 15 * time.Second,
		StoreBackend:    BackendMongo,
		MongoHost:       "localhost",
		MongoPort:       27017,
		MongoAuthSource: "admin",
		MongoAdminURI:   "mongodb://localhost:27017/",
		Database:        "inventory_management_db",
		Collection:      "inventory_management_collection",
		LoginTimeout:    time.Second,
		SeedUser:        "user",
		SeedPassword:    "password",
		SeedCount:       100,
		PageSize:        25,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	sec, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return withEnv(Defaults())
}

// LoadFile reads a YAML configuration file over the defaults. Environment
// variables still take precedence over file values.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return withEnv(cfg), nil
}

func withEnv(c Config) Config {
	c.HTTPAddr = getenv("HTTP_ADDR", c.HTTPAddr)
	c.ShutdownTimeout = durenvs("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.StoreBackend = getenv("STORE_BACKEND", c.StoreBackend)
	c.MongoHost = getenv("MONGO_HOST", c.MongoHost)
	c.MongoPort = atoienv("MONGO_PORT", c.MongoPort)
	c.MongoAuthSource = getenv("MONGO_AUTH_SOURCE", c.MongoAuthSource)
	c.MongoAdminURI = getenv("MONGO_ADMIN_URI", c.MongoAdminURI)
	c.Database = getenv("TARGET_DB", c.Database)
	c.Collection = getenv("TARGET_COLLECTION", c.Collection)
	c.LoginTimeout = durenvms("LOGIN_TIMEOUT_MS", c.LoginTimeout)
	c.SeedUser = getenv("SEED_USER", c.SeedUser)
	c.SeedPassword = getenv("SEED_PASSWORD", c.SeedPassword)
	c.SeedCount = atoienv("SEED_COUNT", c.SeedCount)
	c.PageSize = atoienv("PAGE_SIZE", c.PageSize)
	c.SessionSecret = getenv("SESSION_SECRET", c.SessionSecret)
	return c
}

// Validate reports configuration values the service cannot run with.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMongo, BackendMemory:
	default:
		return fmt.Errorf("invalid store backend %q: must be %q or %q", c.StoreBackend, BackendMongo, BackendMemory)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be > 0, got %d", c.PageSize)
	}
	if c.SeedCount < 0 {
		return fmt.Errorf("seed count must be >= 0, got %d", c.SeedCount)
	}
	if c.Database == "" || c.Collection == "" {
		return fmt.Errorf("database and collection must be set")
	}
	return nil
}
