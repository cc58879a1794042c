package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Download DownloadConfig `mapstructure:"download" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Callback CallbackConfig `mapstructure:"callback" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// RateLimitRPM caps task submissions per client IP per minute.
	// Zero disables rate limiting.
	RateLimitRPM int `mapstructure:"rate_limit_rpm" validate:"gte=0"`
}

// DatabaseConfig contains all database related settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// DownloadConfig controls the download orchestrator.
type DownloadConfig struct {
	// Dir is the directory downloaded artifacts are written to.
	Dir string `mapstructure:"dir" validate:"required"`
	// MaxFileSize is the hard cap in bytes on a produced artifact.
	MaxFileSize int64 `mapstructure:"max_file_size" validate:"required,gt=0"`
	// Proxy is an optional proxy URL passed to the extraction library.
	Proxy string `mapstructure:"proxy"`
	// TakePlaylistFirst resolves playlist URLs to their first entry
	// instead of rejecting them.
	TakePlaylistFirst bool `mapstructure:"take_playlist_first"`
}

// StorageConfig holds fallback credentials for remote storage backends.
// Inline URL credentials take precedence over these; these take
// precedence over the SDK ambient chains.
type StorageConfig struct {
	S3Region        string `mapstructure:"s3_region"`
	S3AccessKey     string `mapstructure:"s3_access_key"`
	S3SecretKey     string `mapstructure:"s3_secret_key"`
	OSSAccessKey    string `mapstructure:"oss_access_key"`
	OSSSecretKey    string `mapstructure:"oss_secret_key"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// CallbackConfig controls the outbound notification retry loop.
type CallbackConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	MaxRetries     int `mapstructure:"max_retries"     validate:"required,gt=0"`
}

// WorkerConfig controls the task execution pool.
type WorkerConfig struct {
	Count     int `mapstructure:"count"      validate:"required,gt=0"`
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`
	// MaxAttempts bounds re-invocations of a task whose failure was
	// classified retryable.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gt=0"`
	// RetryDelaySeconds is the base delay before a task-level retry;
	// doubled on each subsequent attempt.
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" validate:"required,gt=0"`
}

// RedisConfig configures the optional Redis backend for rate limiting.
// An empty Addr selects the in-memory fallback.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// CleanupConfig controls the periodic download-directory janitor.
// A zero MaxAgeHours disables cleanup.
type CleanupConfig struct {
	MaxAgeHours     int `mapstructure:"max_age_hours"    validate:"gte=0"`
	IntervalMinutes int `mapstructure:"interval_minutes" validate:"gte=0"`
}
