package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file in the working directory.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables with VIDRA_ prefix, e.g. VIDRA_SERVER_PORT,
	// VIDRA_DATABASE_URL, VIDRA_DOWNLOAD_MAX_FILE_SIZE.
	v.SetEnvPrefix("VIDRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for every setting so a bare environment
// yields a runnable local configuration (aside from the database URL).
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.rate_limit_rpm", 0)

	v.SetDefault("database.url", "")

	v.SetDefault("download.dir", "./downloads")
	v.SetDefault("download.max_file_size", int64(5*1024*1024*1024))
	v.SetDefault("download.proxy", "")
	v.SetDefault("download.take_playlist_first", true)

	v.SetDefault("callback.timeout_seconds", 30)
	v.SetDefault("callback.max_retries", 3)

	v.SetDefault("worker.count", 4)
	v.SetDefault("worker.queue_size", 100)
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.retry_delay_seconds", 60)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cleanup.max_age_hours", 24)
	v.SetDefault("cleanup.interval_minutes", 60)
}
