// Package config loads service configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig
	Provider ProviderConfig
	Sync     SyncConfig
	Store    StoreConfig
	Export   ExportConfig
	Worker   WorkerConfig
	LLM      LLMConfig
	Logging  LoggingConfig
}

// ProviderConfig locates the financial data aggregator.
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// WorkerConfig lists the users the worker binary keeps in sync.
type WorkerConfig struct {
	Users []WorkerUser
}

// WorkerUser pairs a user with the credential reference used to sync them.
type WorkerUser struct {
	UserID         string `mapstructure:"user_id"`
	CredentialsRef string `mapstructure:"credentials_ref"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string
}

// SyncConfig tunes the engine and job queue.
type SyncConfig struct {
	Concurrency  int
	BatchSize    int    `mapstructure:"batch_size"`
	HistoryDays  int    `mapstructure:"history_days"`
	BaseCurrency string `mapstructure:"base_currency"`
	Strategy     string
}

// StoreConfig selects and configures the ledger store backend.
type StoreConfig struct {
	// Backend is "memory", "sqlite", or "bigquery".
	Backend string
	// SqlitePath is the database file for the sqlite backend.
	SqlitePath string `mapstructure:"sqlite_path"`
	// Project and Dataset locate the bigquery backend.
	Project string
	Dataset string
}

// ExportConfig holds sync report export settings. An empty bucket disables
// report export.
type ExportConfig struct {
	Bucket string
}

// LLMConfig holds the rule suggester settings.
type LLMConfig struct {
	APIKeyEnv string `mapstructure:"api_key_env"`
	Model     string
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string
}

// Load reads configuration from file and env. Env var overrides use prefix
// LEDGERSYNC_, e.g. LEDGERSYNC_SERVER_ADDR or LEDGERSYNC_STORE_BACKEND.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("provider.base_url", "http://localhost:9090")
	v.SetDefault("sync.concurrency", 5)
	v.SetDefault("sync.batch_size", 200)
	v.SetDefault("sync.history_days", 90)
	v.SetDefault("sync.base_currency", "USD")
	v.SetDefault("sync.strategy", "merge")
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.sqlite_path", filepath.Join(os.Getenv("HOME"), ".local", "share", "ledger-sync", "ledger.db"))
	v.SetDefault("store.project", "")
	v.SetDefault("store.dataset", "finance")
	v.SetDefault("export.bucket", "")
	v.SetDefault("llm.api_key_env", "GEMINI_API_KEY")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("logging.level", "info")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("LEDGERSYNC_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "ledger-sync"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("LEDGERSYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
