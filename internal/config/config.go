package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mediapress/transcoder/pkg/models"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Upload   UploadConfig
	Coconut  CoconutConfig
	Jobs     JobsConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
	Tracing  TracingConfig
	Auth     AuthConfig
	Notify   NotifyConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string

	// TTR is how long a consumed job submission may stay unacked before
	// the broker reclaims it. Must exceed the longest expected remote
	// processing duration.
	TTR time.Duration
}

// UploadConfig holds object storage configuration for the volume
// upload endpoint backend.
type UploadConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool

	// BaseURL is the public root of the upload endpoint; volume-scoped
	// upload URLs are derived from it.
	BaseURL string
}

// CoconutConfig holds remote transcoding API configuration
type CoconutConfig struct {
	APIKey   string
	Endpoint string
	Region   string
}

// JobsConfig holds job orchestration configuration
type JobsConfig struct {
	// OutputPathFormat is the default path template for outputs without
	// an explicit path.
	OutputPathFormat string

	// PollInterval is the delay between remote status checks in the
	// synchronous run loop.
	PollInterval time.Duration

	// DefaultStorage names the storage from Storages used when a job
	// does not specify one.
	DefaultStorage string

	// Storages maps handles to preconfigured storage destinations.
	Storages map[string]models.Storage

	// NotificationURL receives webhook notifications from the remote
	// service.
	NotificationURL string
}

// LoggingConfig holds structured logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds the Prometheus metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds distributed tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
}

// AuthConfig holds API authentication configuration. An empty key
// disables authentication on the control endpoints.
type AuthConfig struct {
	APIKey string
}

// NotifyConfig holds the outbound callback posted to the host CMS when
// jobs finish. An empty URL disables callbacks.
type NotifyConfig struct {
	URL    string
	Secret string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "transcoder")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Queue defaults
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")
	// Transcodes can run far longer than request timeouts.
	viper.SetDefault("queue.ttr", "15m")

	// Upload defaults
	viper.SetDefault("upload.endpoint", "localhost:9000")
	viper.SetDefault("upload.accessKeyID", "minioadmin")
	viper.SetDefault("upload.secretAccessKey", "minioadmin")
	viper.SetDefault("upload.region", "us-east-1")
	viper.SetDefault("upload.useSSL", false)
	viper.SetDefault("upload.baseURL", "http://localhost:8080/uploads")

	// Coconut defaults
	viper.SetDefault("coconut.endpoint", "https://api.coconut.co/v2")
	viper.SetDefault("coconut.region", "")

	// Jobs defaults
	viper.SetDefault("jobs.outputPathFormat", "coconut/{path}/{filename}-{key}.{ext}")
	viper.SetDefault("jobs.pollInterval", "5s")
	viper.SetDefault("jobs.defaultStorage", "")
	viper.SetDefault("jobs.notificationURL", "")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.serviceName", "transcoder")
	viper.SetDefault("tracing.jaegerEndpoint", "")

	// Auth defaults
	viper.SetDefault("auth.apiKey", "")

	// Notify defaults
	viper.SetDefault("notify.url", "")
	viper.SetDefault("notify.secret", "")
}
