package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	Port       string
	GinMode    string
	LogLevel   string
	SeedDemo   bool
	Store      StoreConfig
	Session    SessionConfig
	Categories []Category
}

type StoreConfig struct {
	Driver         string
	DatabaseURL    string
	SQLitePath     string
	LogQueries     bool
	ConnectTimeout time.Duration
	MaxOpenConns   int
}

type SessionConfig struct {
	TTL time.Duration
}

// Category is one of the values a listing's category may take
type Category struct {
	Slug  string `yaml:"slug"`
	Label string `yaml:"label"`
}

// fileConfig is the optional YAML overlay
type fileConfig struct {
	SessionTTL string     `yaml:"session_ttl"`
	Categories []Category `yaml:"categories"`
}

var DefaultCategories = []Category{
	{Slug: "electronics", Label: "Electronics"},
	{Slug: "fashion", Label: "Fashion"},
	{Slug: "home", Label: "Home & Garden"},
	{Slug: "toys", Label: "Toys & Hobbies"},
	{Slug: "books", Label: "Books & Media"},
	{Slug: "vehicles", Label: "Vehicles"},
	{Slug: "art", Label: "Art & Collectibles"},
	{Slug: "other", Label: "Other"},
	{Slug: "furniture", Label: "Furniture"},
}

// Load reads configuration from .env, the environment and the optional YAML
// file named by CONFIG_FILE.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getPort(),
		GinMode:  getEnv("GIN_MODE", "release"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		SeedDemo: getEnvBool("SEED_DEMO", false),
		Store: StoreConfig{
			Driver:         getEnv("STORE_DRIVER", DriverSQLite),
			DatabaseURL:    os.Getenv("DATABASE_URL"),
			SQLitePath:     getEnv("SQLITE_PATH", "auctions.db"),
			LogQueries:     getEnvBool("LOG_QUERIES", false),
			ConnectTimeout: getEnvDuration("DB_CONNECT_TIMEOUT", 30*time.Second),
			MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 10),
		},
		Session: SessionConfig{
			TTL: getEnvDuration("SESSION_TTL", 14*24*time.Hour),
		},
		Categories: DefaultCategories,
	}

	if err := cfg.loadFile(getEnv("CONFIG_FILE", "config.yaml")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("error opening config file: %w", err)
	}
	return c.applyYAML(data)
}

func (c *Config) applyYAML(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	if len(fc.Categories) > 0 {
		c.Categories = fc.Categories
	}
	if fc.SessionTTL != "" {
		ttl, err := time.ParseDuration(fc.SessionTTL)
		if err != nil {
			return fmt.Errorf("error parsing session_ttl: %w", err)
		}
		c.Session.TTL = ttl
	}
	return nil
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s store", DriverPostgres)
		}
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", c.Session.TTL)
	}

	seen := make(map[string]struct{}, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Slug == "" {
			return fmt.Errorf("category with label %q has an empty slug", cat.Label)
		}
		if _, dup := seen[cat.Slug]; dup {
			return fmt.Errorf("duplicate category %q", cat.Slug)
		}
		seen[cat.Slug] = struct{}{}
	}
	return nil
}

// CategorySlugs returns the configured category slugs in order
func (c *Config) CategorySlugs() []string {
	slugs := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		slugs = append(slugs, cat.Slug)
	}
	return slugs
}

// getPort returns the server port from env or defaults to ":8080"
func getPort() string {
	if p := os.Getenv("PORT"); p != "" {
		return fmt.Sprintf(":%s", p)
	}
	return ":8080"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
