// Package config loads the kanban service settings from an optional YAML file
// overlaid with environment variables.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

const (
	BackendTables = "tables"
	BackendSQLite = "sqlite"
)

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`
	Events  EventsConfig  `yaml:"events"`
	Debug   bool          `yaml:"debug"`
}

type StorageConfig struct {
	// Backend is either "tables" (Azure Table Storage) or "sqlite".
	Backend          string       `yaml:"backend"`
	ConnectionString string       `yaml:"connection_string"`
	Tables           TablesConfig `yaml:"tables"`
	SQLitePath       string       `yaml:"sqlite_path"`
}

type TablesConfig struct {
	Boards  string `yaml:"boards"`
	Columns string `yaml:"columns"`
	Tasks   string `yaml:"tasks"`
	Members string `yaml:"members"`
}

type RedisConfig struct {
	// ConnectionString is a redis:// URL or the "host:port,password=...,ssl=true" form.
	// Empty disables the cache.
	ConnectionString string        `yaml:"connection_string"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
}

type EventsConfig struct {
	Queue   string `yaml:"queue"`
	Channel string `yaml:"channel"`
}

func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendTables,
			Tables: TablesConfig{
				Boards:  "Boards",
				Columns: "Columns",
				Tasks:   "Tasks",
				Members: "Members",
			},
			SQLitePath: "kanban.db",
		},
		Redis: RedisConfig{CacheTTL: 10 * time.Minute},
	}
}

// Load reads CONFIG_FILE when set and then applies the environment on top.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
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
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("STORAGE_CONNECTION_STRING", &c.Storage.ConnectionString)
	str("BOARDS_TABLE", &c.Storage.Tables.Boards)
	str("COLUMNS_TABLE", &c.Storage.Tables.Columns)
	str("TASKS_TABLE", &c.Storage.Tables.Tasks)
	str("MEMBERS_TABLE", &c.Storage.Tables.Members)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("REDIS_CONNECTION_STRING", &c.Redis.ConnectionString)
	str("EVENTS_QUEUE", &c.Events.Queue)
	str("EVENTS_CHANNEL", &c.Events.Channel)

	if v, ok := lookup("CACHE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CACHE_TTL: %w", err)
		}
		c.Redis.CacheTTL = d
	}
	if v, ok := lookup("DEBUG"); ok && v != "" {
		dbg, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DEBUG: %w", err)
		}
		c.Debug = dbg
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case BackendTables:
		if c.Storage.ConnectionString == "" {
			errs = append(errs, errors.New("storage.connection_string is required for the tables backend"))
		}
		t := c.Storage.Tables
		if t.Boards == "" || t.Columns == "" || t.Tasks == "" || t.Members == "" {
			errs = append(errs, errors.New("storage.tables needs all four table names"))
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Redis.CacheTTL < 0 {
		errs = append(errs, errors.New("redis.cache_ttl must not be negative"))
	}
	if c.Events.Queue != "" && c.Storage.ConnectionString == "" {
		errs = append(errs, errors.New("events.queue needs storage.connection_string"))
	}
	if c.Events.Channel != "" && c.Redis.ConnectionString == "" {
		errs = append(errs, errors.New("events.channel needs redis.connection_string"))
	}
	return errors.Join(errs...)
}

// RedisOptions parses ConnectionString as a URL, falling back to the
// comma-separated form used by Azure Cache for Redis.
func (r RedisConfig) RedisOptions() (*redis.Options, error) {
	if r.ConnectionString == "" {
		return nil, errors.New("redis connection string is empty")
	}
	if opts, err := redis.ParseURL(r.ConnectionString); err == nil {
		return opts, nil
	}
	parts := strings.Split(r.ConnectionString, ",")
	if strings.Contains(parts[0], "://") || parts[0] == "" {
		return nil, fmt.Errorf("invalid redis connection string %q", parts[0])
	}
	opts := &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}
