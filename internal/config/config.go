package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned by RequireAPIKey when no credential is configured.
var ErrMissingAPIKey = errors.New("ZTM_API_KEY is not set")

// Config holds all configuration shared by the commands
type Config struct {
	// ZTM open data API
	APIKey              string        `validate:"omitempty"`
	BaseURL             string        `validate:"required,url"`
	StopsResourceID     string        `validate:"required"`
	LinesResourceID     string        `validate:"required"`
	TimetableResourceID string        `validate:"required"`
	HTTPTimeout         time.Duration `validate:"gt=0"`

	// Local data files
	StopsFile    string `validate:"required"`
	IndexFile    string `validate:"required"`
	CheckpointDB string `validate:"required"`

	// Crawl behaviour
	RequestDelay        time.Duration `validate:"gte=0"`
	ProgressEvery       int           `validate:"gt=0"`
	CheckpointEvery     int           `validate:"gt=0"`
	IndexRefreshDays    int           `validate:"gte=0"`
	CheckpointRetention time.Duration `validate:"gte=0"`

	// HTTP API
	Port               int      `validate:"gt=0,lt=65536"`
	AllowedOrigins     []string `validate:"dive,required"`
	DatabaseURL        string   `validate:"omitempty"`
	TimetableCacheSize int      `validate:"gte=0"`

	LogFormat string `validate:"oneof=console json"`
}

// Load reads configuration from the environment (optionally seeded from .env files)
// with sensible defaults and validates the result.
func Load() (*Config, error) {
	// Base .env first, then .env.local which overrides for local development
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	v := viper.New()
	v.SetEnvPrefix("ZTM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		APIKey:              v.GetString("api_key"),
		BaseURL:             strings.TrimRight(v.GetString("base_url"), "/"),
		StopsResourceID:     v.GetString("stops_resource"),
		LinesResourceID:     v.GetString("lines_resource"),
		TimetableResourceID: v.GetString("timetable_resource"),
		HTTPTimeout:         time.Duration(v.GetInt("http_timeout_seconds")) * time.Second,

		StopsFile:    v.GetString("stops_file"),
		IndexFile:    v.GetString("index_file"),
		CheckpointDB: v.GetString("checkpoint_db"),

		RequestDelay:        time.Duration(v.GetInt("request_delay_ms")) * time.Millisecond,
		ProgressEvery:       v.GetInt("progress_every"),
		CheckpointEvery:     v.GetInt("checkpoint_every"),
		IndexRefreshDays:    v.GetInt("index_refresh_days"),
		CheckpointRetention: time.Duration(v.GetInt("checkpoint_retention_days")) * 24 * time.Hour,

		Port:           v.GetInt("port"),
		AllowedOrigins: splitList(v.GetString("allowed_origins")),
		DatabaseURL:    v.GetString("database_url"),

		TimetableCacheSize: v.GetInt("timetable_cache_size"),

		LogFormat: strings.ToLower(v.GetString("log_format")),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// RequireAPIKey reports ErrMissingAPIKey for commands that talk to the API.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// ManifestFile is where index-lines records when the index was generated.
func (c *Config) ManifestFile() string {
	return c.IndexFile + ".manifest.json"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://api.um.warszawa.pl/api/action")
	v.SetDefault("stops_resource", "ab75c33d-3a26-4342-b36a-6e5fef0a3ac3")
	v.SetDefault("lines_resource", "88cd555f-6f31-43ca-9de4-66c479ad5942")
	v.SetDefault("timetable_resource", "e923fa0e-d96c-43f9-ae6e-60518c9f3238")
	v.SetDefault("http_timeout_seconds", 15)

	v.SetDefault("stops_file", "stops.json")
	v.SetDefault("index_file", "lines.json")
	v.SetDefault("checkpoint_db", "crawl.db")

	v.SetDefault("request_delay_ms", 100)
	v.SetDefault("progress_every", 10)
	v.SetDefault("checkpoint_every", 50)
	v.SetDefault("index_refresh_days", 7)
	v.SetDefault("checkpoint_retention_days", 14)

	v.SetDefault("port", 8081)
	v.SetDefault("allowed_origins", "http://localhost:5173")
	v.SetDefault("database_url", "")
	v.SetDefault("timetable_cache_size", 0)

	v.SetDefault("log_format", "console")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
