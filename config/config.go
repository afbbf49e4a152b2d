// Package config provides the bot's configuration: environment variables
// with sensible defaults, optionally overridden by a YAML file pointed to
// by CONFBOT_CONFIG.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full runtime configuration.
type Config struct {
	// Server settings
	WSPort int `yaml:"ws_port"`

	// Database. A postgres:// DSN selects the Postgres store; anything
	// else is treated as a SQLite path.
	DatabaseURL string `yaml:"database_url"`

	// Summarizer endpoint (OpenAI compatible).
	SummarizerURL     string        `yaml:"summarizer_url"`
	SummarizerAPIKey  string        `yaml:"summarizer_api_key"`
	SummarizerModel   string        `yaml:"summarizer_model"`
	SummarizerTimeout time.Duration `yaml:"summarizer_timeout"`

	// Natural-language query endpoint.
	NLQueryURL     string        `yaml:"nlquery_url"`
	NLQueryAPIKey  string        `yaml:"nlquery_api_key"`
	NLQueryTimeout time.Duration `yaml:"nlquery_timeout"`

	// Notification cycles: how often each loop runs and how far back it
	// looks.
	NewEventsInterval     time.Duration `yaml:"new_events_interval"`
	NewEventsWindow       time.Duration `yaml:"new_events_window"`
	// NewEventsViewWindow is how far back the drill-down behind the
	// broadcast looks; wider than the cycle window so a late press still
	// finds the events.
	NewEventsViewWindow   time.Duration `yaml:"new_events_view_window"`
	UpdatedEventsInterval time.Duration `yaml:"updated_events_interval"`
	UpdatedEventsWindow   time.Duration `yaml:"updated_events_window"`

	// AdminChats may use the statistics commands.
	AdminChats []int64 `yaml:"admin_chats"`

	// WebSocket tuning
	MaxMessageSize int64         `yaml:"max_message_size"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
}

// Load builds the configuration from the environment, then applies the
// YAML file named by CONFBOT_CONFIG on top if one is set.
func Load() (*Config, error) {
	cfg := &Config{
		WSPort:                getEnvInt("WS_PORT", 8080),
		DatabaseURL:           getEnv("DATABASE_URL", "confbot.db"),
		SummarizerURL:         getEnv("SUMMARIZER_URL", "http://localhost:4000"),
		SummarizerAPIKey:      getEnv("SUMMARIZER_API_KEY", ""),
		SummarizerModel:       getEnv("SUMMARIZER_MODEL", "gpt-4o-mini"),
		SummarizerTimeout:     getEnvDuration("SUMMARIZER_TIMEOUT", 20*time.Second),
		NLQueryURL:            getEnv("NLQUERY_URL", "http://localhost:4100"),
		NLQueryAPIKey:         getEnv("NLQUERY_API_KEY", ""),
		NLQueryTimeout:        getEnvDuration("NLQUERY_TIMEOUT", 5*time.Minute),
		NewEventsInterval:     getEnvDuration("NEW_EVENTS_INTERVAL", 14000*time.Second),
		NewEventsWindow:       getEnvDuration("NEW_EVENTS_WINDOW", 5*time.Hour),
		NewEventsViewWindow:   getEnvDuration("NEW_EVENTS_VIEW_WINDOW", 24*time.Hour),
		UpdatedEventsInterval: getEnvDuration("UPDATED_EVENTS_INTERVAL", 14400*time.Second),
		UpdatedEventsWindow:   getEnvDuration("UPDATED_EVENTS_WINDOW", 4*time.Hour),
		AdminChats:            getEnvInt64List("ADMIN_CHATS"),
		MaxMessageSize:        int64(getEnvInt("MAX_MESSAGE_SIZE", 65536)),
		ReadTimeout:           getEnvDuration("READ_TIMEOUT", 60*time.Second),
		WriteTimeout:          getEnvDuration("WRITE_TIMEOUT", 10*time.Second),
		PingInterval:          getEnvDuration("PING_INTERVAL", 30*time.Second),
	}

	if path := os.Getenv("CONFBOT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
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

func getEnvInt64List(key string) []int64 {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []int64
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}
