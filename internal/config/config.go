package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config represents the entire application configuration
type Config struct {
	Env         string            `json:"env"`
	Port        int               `json:"port"`
	AppName     string            `json:"app_name"`
	Marketplace MarketplaceConfig `json:"marketplace"`
	Stats       StatsConfig       `json:"stats"`
	MongoDB     MongoDBConfig     `json:"mongodb"`
	Redis       RedisConfig       `json:"redis"`
	RabbitMQ    RabbitMQConfig    `json:"rabbitmq"`
	AWS         AWSConfig         `json:"aws"`
	Logging     LoggingConfig     `json:"logging"`
	CORS        CORSConfig        `json:"cors"`
}

// MarketplaceConfig points at the remote marketplace backend
type MarketplaceConfig struct {
	BaseURL        string    `json:"base_url"`
	TimeoutSeconds int       `json:"timeout_seconds"`
	Endpoints      Endpoints `json:"endpoints"`
}

// Endpoints lists the backend paths probed for each role, in priority order
type Endpoints struct {
	ClientSummary    string `json:"client_summary"`
	ClientJobs       string `json:"client_jobs"`
	ClientRequests   string `json:"client_requests"`
	InspectorSummary string `json:"inspector_summary"`
	InspectorJobs    string `json:"inspector_jobs"`
	InspectorBids    string `json:"inspector_bids"`
}

// StatsConfig controls summary resolution and caching
type StatsConfig struct {
	CacheMinutes         int  `json:"cache_minutes"`
	SourceTimeoutSeconds int  `json:"source_timeout_seconds"`
	SeparatePending      bool `json:"separate_pending"`
	PublishEvents        bool `json:"publish_events"`
}

type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
	Enabled  bool   `json:"enabled"`
}

// RabbitMQConfig contains broker connection and topology settings
type RabbitMQConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	VHost           string `json:"vhost"`
	ExchangeName    string `json:"exchange_name"`
	EventRoutingKey string `json:"event_routing_key"`
	InvalidateQueue string `json:"invalidate_queue"`
	InvalidateKey   string `json:"invalidate_routing_key"`
	PrefetchCount   int    `json:"prefetch_count"`
	Enabled         bool   `json:"enabled"`
}

// AWSConfig holds the S3 bucket used for summary exports
type AWSConfig struct {
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Enabled   bool   `json:"enabled"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age,omitempty"` // Optional, seconds that preflight requests can be cached
}

// MongoDBConfig contains MongoDB connection details
type MongoDBConfig struct {
	URI      string `json:"uri"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       string `json:"db"`
}

// LoggingConfig contains logging-related configurations
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// LoadConfig reads configuration from the specified file path
func LoadConfig(filePath string) (*Config, error) {
	configData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(configData, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.applyEnv()
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ApplyDefaults fills zero values with the service defaults
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.AppName == "" {
		c.AppName = "statshub"
	}
	if c.Marketplace.TimeoutSeconds <= 0 {
		c.Marketplace.TimeoutSeconds = 30
	}

	e := &c.Marketplace.Endpoints
	setDefault(&e.ClientSummary, "/client/me/summary")
	setDefault(&e.ClientJobs, "/client/jobs")
	setDefault(&e.ClientRequests, "/client/requests")
	setDefault(&e.InspectorSummary, "/inspector/me/summary")
	setDefault(&e.InspectorJobs, "/inspector/jobs")
	setDefault(&e.InspectorBids, "/inspector/bids")

	if c.Stats.CacheMinutes <= 0 {
		c.Stats.CacheMinutes = 5
	}
	if c.Stats.SourceTimeoutSeconds < 0 {
		c.Stats.SourceTimeoutSeconds = 0
	}

	setDefault(&c.Redis.Prefix, "statshub")
	setDefault(&c.RabbitMQ.VHost, "/")
	setDefault(&c.RabbitMQ.ExchangeName, "statshub")
	setDefault(&c.RabbitMQ.EventRoutingKey, "stats.computed")
	setDefault(&c.RabbitMQ.InvalidateQueue, "statshub.invalidate")
	setDefault(&c.RabbitMQ.InvalidateKey, "stats.invalidate")
	if c.RabbitMQ.Port == 0 {
		c.RabbitMQ.Port = 5672
	}

	setDefault(&c.Logging.Level, "info")
	setDefault(&c.Logging.Format, "json")
}

// Validate reports configuration that cannot work
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Marketplace.BaseURL) == "" {
		return fmt.Errorf("marketplace.base_url is required")
	}
	if c.MongoDB.URI == "" {
		return fmt.Errorf("mongodb.uri is required")
	}
	if c.AWS.Enabled && c.AWS.Bucket == "" {
		return fmt.Errorf("aws.bucket is required when aws is enabled")
	}
	return nil
}

// applyEnv lets secrets come from the environment instead of the file
func (c *Config) applyEnv() {
	overrideString("STATSHUB_MARKETPLACE_URL", &c.Marketplace.BaseURL)
	overrideString("STATSHUB_MONGO_URI", &c.MongoDB.URI)
	overrideString("STATSHUB_MONGO_PASSWORD", &c.MongoDB.Password)
	overrideString("STATSHUB_REDIS_PASSWORD", &c.Redis.Password)
	overrideString("STATSHUB_RABBIT_PASSWORD", &c.RabbitMQ.Password)
	overrideString("STATSHUB_AWS_ACCESS_KEY", &c.AWS.AccessKey)
	overrideString("STATSHUB_AWS_SECRET_KEY", &c.AWS.SecretKey)

	if v := strings.TrimSpace(os.Getenv("STATSHUB_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
}

func overrideString(key string, target *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func setDefault(target *string, value string) {
	if *target == "" {
		*target = value
	}
}
