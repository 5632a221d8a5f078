package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	SweepInterval          time.Duration
	SweepBatchSize         int
	SweepLeaseTTL          time.Duration
	NotificationsChannel   string
	StreamKeepAlive        time.Duration
	UploadMaxSizeMB        int
	AnswersPerMinute       int
	CORSAllowOrigins       string
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
	v.SetEnvPrefix("RANKPAPER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Rank Paper API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "rankpaper/answer-sheets")
	v.SetDefault("sweep.interval", "30s")
	v.SetDefault("sweep.batch_size", 100)
	v.SetDefault("sweep.lease_ttl", "")
	v.SetDefault("notifications.channel", "rankpaper")
	v.SetDefault("notifications.keepalive", "30s")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("ratelimit.answers_per_minute", 120)
	v.SetDefault("cors.allow_origins", "*")

	interval, err := parseDuration(v.GetString("sweep.interval"), 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid sweep interval: %w", err)
	}
	leaseTTL, err := parseDuration(v.GetString("sweep.lease_ttl"), interval)
	if err != nil {
		return Config{}, fmt.Errorf("invalid sweep lease ttl: %w", err)
	}
	keepAlive, err := parseDuration(v.GetString("notifications.keepalive"), 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid notification keepalive: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		SweepInterval:          interval,
		SweepBatchSize:         v.GetInt("sweep.batch_size"),
		SweepLeaseTTL:          leaseTTL,
		NotificationsChannel:   v.GetString("notifications.channel"),
		StreamKeepAlive:        keepAlive,
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		AnswersPerMinute:       v.GetInt("ratelimit.answers_per_minute"),
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 100
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	if cfg.AnswersPerMinute <= 0 {
		cfg.AnswersPerMinute = 120
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return fallback, nil
	}
	return parsed, nil
}
