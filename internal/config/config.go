package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	CORSAllowedOrigins     []string
	AccessLog              bool
	DatabaseURL            string
	DatabaseMaxOpenConns   int
	DatabaseMaxIdleConns   int
	DatabaseConnLifetime   time.Duration
	RedisURL               string
	NATSURL                string
	NotificationChannel    string
	NotificationKeepAlive  time.Duration
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	MaxVideoSizeMB         int
	AIProvider             string
	AISystemPrompt         string
	ReplicateAPIToken      string
	ReplicateBaseURL       string
	ReplicateModel         string
	ReplicateTimeout       time.Duration
	ReplicatePollInterval  time.Duration
	OpenAIAPIKey           string
	OpenAIBaseURL          string
	OpenAIModel            string
	PlatformFeeRate        decimal.Decimal
	EvaluationLockTTL      time.Duration
	EvaluateRateLimit      int
	EvaluateRateWindow     time.Duration
	ReputationCacheTTL     time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CREATORHUB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "CreatorHub API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.cors_origins", "*")
	v.SetDefault("app.access_log", false)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_lifetime", "30m")
	v.SetDefault("notifications.channel", "creatorhub")
	v.SetDefault("notifications.keepalive", "30s")
	v.SetDefault("cloudinary.folder", "creatorhub/submissions")
	v.SetDefault("video.max_size_mb", 200)
	v.SetDefault("ai.provider", "replicate")
	v.SetDefault("replicate.model", "lucataco/qwen2.5-omni-7b")
	v.SetDefault("replicate.timeout", "5m")
	v.SetDefault("replicate.poll_interval", "2s")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("payments.fee_rate", "0.10")
	v.SetDefault("evaluation.lock_ttl", "10m")
	v.SetDefault("evaluation.rate_limit", 5)
	v.SetDefault("evaluation.rate_window", "1m")
	v.SetDefault("reputation.cache_ttl", "5m")

	durations := map[string]time.Duration{}
	for _, key := range []string{"notifications.keepalive", "replicate.timeout", "replicate.poll_interval", "evaluation.lock_ttl", "evaluation.rate_window", "database.conn_lifetime", "reputation.cache_ttl"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		durations[key] = parsed
	}

	feeRate, err := decimal.NewFromString(v.GetString("payments.fee_rate"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid platform fee rate: %w", err)
	}
	if !feeRate.IsPositive() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Config{}, fmt.Errorf("platform fee rate must be within (0, 1), got %s", feeRate)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		CORSAllowedOrigins:     splitList(v.GetString("app.cors_origins")),
		AccessLog:              v.GetBool("app.access_log"),
		DatabaseURL:            v.GetString("database.url"),
		DatabaseMaxOpenConns:   v.GetInt("database.max_open_conns"),
		DatabaseMaxIdleConns:   v.GetInt("database.max_idle_conns"),
		DatabaseConnLifetime:   durations["database.conn_lifetime"],
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		NotificationChannel:    v.GetString("notifications.channel"),
		NotificationKeepAlive:  durations["notifications.keepalive"],
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		MaxVideoSizeMB:         v.GetInt("video.max_size_mb"),
		AIProvider:             strings.ToLower(strings.TrimSpace(v.GetString("ai.provider"))),
		AISystemPrompt:         v.GetString("ai.system_prompt"),
		ReplicateAPIToken:      v.GetString("replicate.api_token"),
		ReplicateBaseURL:       v.GetString("replicate.base_url"),
		ReplicateModel:         v.GetString("replicate.model"),
		ReplicateTimeout:       durations["replicate.timeout"],
		ReplicatePollInterval:  durations["replicate.poll_interval"],
		OpenAIAPIKey:           v.GetString("openai.api_key"),
		OpenAIBaseURL:          v.GetString("openai.base_url"),
		OpenAIModel:            v.GetString("openai.model"),
		PlatformFeeRate:        feeRate,
		EvaluationLockTTL:      durations["evaluation.lock_ttl"],
		EvaluateRateLimit:      v.GetInt("evaluation.rate_limit"),
		EvaluateRateWindow:     durations["evaluation.rate_window"],
		ReputationCacheTTL:     durations["reputation.cache_ttl"],
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	switch cfg.AIProvider {
	case "replicate":
		if cfg.ReplicateAPIToken == "" {
			return Config{}, fmt.Errorf("replicate api token must be provided")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return Config{}, fmt.Errorf("openai api key must be provided")
		}
	default:
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	if cfg.MaxVideoSizeMB <= 0 {
		cfg.MaxVideoSizeMB = 200
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
