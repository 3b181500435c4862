package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Storage.Backend != BackendTables {
		t.Fatalf("expected tables backend by default, got %q", cfg.Storage.Backend)
	}
	if cfg.Redis.CacheTTL != 10*time.Minute {
		t.Fatalf("unexpected default cache ttl %v", cfg.Redis.CacheTTL)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing connection string to fail validation")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"tables", func(c *Config) { c.Storage.ConnectionString = "UseDevelopmentStorage=true" }, false},
		{"sqlite", func(c *Config) { c.Storage.Backend = BackendSQLite }, false},
		{"sqlite without path", func(c *Config) { c.Storage.Backend = BackendSQLite; c.Storage.SQLitePath = "" }, true},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "mongo" }, true},
		{"missing table name", func(c *Config) {
			c.Storage.ConnectionString = "x"
			c.Storage.Tables.Members = ""
		}, true},
		{"negative ttl", func(c *Config) { c.Storage.Backend = BackendSQLite; c.Redis.CacheTTL = -time.Second }, true},
		{"queue without storage account", func(c *Config) { c.Storage.Backend = BackendSQLite; c.Events.Queue = "events" }, true},
		{"channel without redis", func(c *Config) { c.Storage.Backend = BackendSQLite; c.Events.Channel = "events" }, true},
		{"channel with redis", func(c *Config) {
			c.Storage.Backend = BackendSQLite
			c.Events.Channel = "events"
			c.Redis.ConnectionString = "localhost:6379"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kanban.yaml")
	content := `
storage:
  backend: sqlite
  sqlite_path: /var/lib/kanban.db
redis:
  connection_string: localhost:6379
  cache_ttl: 30s
events:
  channel: kanban-events
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SQLITE_PATH", "/tmp/override.db")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Backend != BackendSQLite || cfg.Storage.SQLitePath != "/tmp/override.db" {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Redis.CacheTTL != 30*time.Second || cfg.Events.Channel != "kanban-events" {
		t.Fatalf("unexpected file values: %+v %+v", cfg.Redis, cfg.Events)
	}
	if !cfg.Debug {
		t.Fatal("expected DEBUG to enable debug")
	}
	if cfg.Storage.Tables.Boards != "Boards" {
		t.Fatalf("defaults lost: %+v", cfg.Storage.Tables)
	}
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	for key, value := range map[string]string{"CACHE_TTL": "soon", "DEBUG": "maybe"} {
		cfg := DefaultConfig()
		lookup := func(k string) (string, bool) {
			if k == key {
				return value, true
			}
			return "", false
		}
		if err := cfg.applyEnv(lookup); err == nil {
			t.Fatalf("expected %s=%q to be rejected", key, value)
		}
	}
}

func TestRedisOptions(t *testing.T) {
	opts, err := RedisConfig{ConnectionString: "redis://:secret@cache:6380/2"}.RedisOptions()
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("unexpected url options: %+v", opts)
	}

	opts, err = RedisConfig{ConnectionString: "kanban.redis.cache.windows.net:6380,password=abc=,ssl=True,abortConnect=False"}.RedisOptions()
	if err != nil {
		t.Fatalf("azure form: %v", err)
	}
	if opts.Addr != "kanban.redis.cache.windows.net:6380" || opts.Password != "abc=" || opts.TLSConfig == nil {
		t.Fatalf("unexpected azure options: %+v", opts)
	}

	if _, err := (RedisConfig{}).RedisOptions(); err == nil {
		t.Fatal("expected empty connection string to fail")
	}
}
