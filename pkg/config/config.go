package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Local    LocalConfig    `mapstructure:"local"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Quota    QuotaConfig    `mapstructure:"quota"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

// LocalConfig selects the client-local key/value store backing the activity
// tracker and quota ledger.
type LocalConfig struct {
	Path        string `mapstructure:"path"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type SessionsConfig struct {
	DefaultTitle        string        `mapstructure:"default_title"`
	StalenessThreshold  time.Duration `mapstructure:"staleness_threshold"`
	MaxActiveSessions   int           `mapstructure:"max_active_sessions"`
	ArchiveAge          time.Duration `mapstructure:"archive_age"`
	ActiveCompactLimit  int           `mapstructure:"active_compact_limit"`
	ActiveKeepFirst     int           `mapstructure:"active_keep_first"`
	ActiveKeepLast      int           `mapstructure:"active_keep_last"`
	ArchiveCompactLimit int           `mapstructure:"archive_compact_limit"`
	ArchiveKeepFirst    int           `mapstructure:"archive_keep_first"`
	ArchiveKeepLast     int           `mapstructure:"archive_keep_last"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	MetadataCacheTTL    time.Duration `mapstructure:"metadata_cache_ttl"`
	PageSize            int           `mapstructure:"page_size"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
}

type QuotaConfig struct {
	DailyLimit  int `mapstructure:"daily_limit"`
	PerCallCost int `mapstructure:"per_call_cost"`
	HistorySize int `mapstructure:"history_size"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("local.path", "local-state.db")
	v.SetDefault("local.use_in_memory", false)
	v.SetDefault("sessions.default_title", "New Chat")
	v.SetDefault("sessions.staleness_threshold", 6*time.Hour)
	v.SetDefault("sessions.max_active_sessions", 5)
	v.SetDefault("sessions.archive_age", 30*24*time.Hour)
	v.SetDefault("sessions.active_compact_limit", 50)
	v.SetDefault("sessions.active_keep_first", 10)
	v.SetDefault("sessions.active_keep_last", 40)
	v.SetDefault("sessions.archive_compact_limit", 20)
	v.SetDefault("sessions.archive_keep_first", 5)
	v.SetDefault("sessions.archive_keep_last", 15)
	v.SetDefault("sessions.cache_ttl", 60*time.Second)
	v.SetDefault("sessions.metadata_cache_ttl", 30*time.Second)
	v.SetDefault("sessions.page_size", 20)
	v.SetDefault("sessions.maintenance_interval", time.Hour)
	v.SetDefault("quota.daily_limit", 5000)
	v.SetDefault("quota.per_call_cost", 100)
	v.SetDefault("quota.history_size", 20)
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.max_tokens", 60)
	v.SetDefault("openai.temperature", 0.7)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	return &config, nil
}
