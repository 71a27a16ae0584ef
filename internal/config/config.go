// Package config loads the process configuration shared by the service,
// balancer, worker and extractor binaries.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//nolint:govet // fieldalignment: struct field order optimized for readability over memory
type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Broker     BrokerConfig     `yaml:"broker"`
	ChatService ChatServiceConfig `yaml:"chat_service"`
	Session    SessionConfig    `yaml:"session"`
	Balancer   BalancerConfig   `yaml:"balancer"`
	Worker     WorkerConfig     `yaml:"worker"`
	Extractor  ExtractorConfig  `yaml:"extractor"`
	Secret     SecretConfig     `yaml:"secret"`
	CORS       CORSConfig       `yaml:"cors"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name  string `yaml:"name"`
	Env   string `yaml:"env"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

//nolint:govet // fieldalignment: struct field order optimized for readability
type DatabaseConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	Name                  string `yaml:"name"`
	User                  string `yaml:"user"`
	Password              string `yaml:"password"`
	SSLMode               string `yaml:"ssl_mode"`
	MaxConnections        int    `yaml:"max_connections"`
	MaxIdleConnections    int    `yaml:"max_idle_connections"`
	ConnectionMaxLifetime int    `yaml:"connection_max_lifetime"`
}

//nolint:govet // fieldalignment: struct field order optimized for readability
type RedisConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	MaxRetries int    `yaml:"max_retries"`
	PoolSize   int    `yaml:"pool_size"`
}

// BrokerConfig configures the AMQP connection used by the Router and the
// Balancer for the create/delete RPC protocol (spec §4.2/§4.3/§6).
type BrokerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	VHost         string `yaml:"vhost"`
	Exchange      string `yaml:"exchange"`
	MaxReconnect  int    `yaml:"max_reconnect"`
	ReconnectWait int    `yaml:"reconnect_wait"`
}

// ChatServiceConfig configures the opaque upstream chat-service client.
type ChatServiceConfig struct {
	BaseURL        string `yaml:"base_url"`
	RequestTimeout int    `yaml:"request_timeout_seconds"`
}

// SessionConfig controls the Redis session TTL (spec §6: SESSION_TTL).
type SessionConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// BalancerConfig sizes the fleet a single Balancer owns.
type BalancerConfig struct {
	WorkersCount        int    `yaml:"workers_count"`
	InstancesPerWorker  int    `yaml:"instances_per_worker"`
	WorkerBinaryPath    string `yaml:"worker_binary_path"`
	ControlListenAddr   string `yaml:"control_listen_addr"`
}

// WorkerConfig tunes the Worker's internal pools and reporting cadence.
type WorkerConfig struct {
	HeartbeatIntervalSeconds int `yaml:"heartbeat_interval_seconds"`
	CommandPoolSize          int `yaml:"command_pool_size"`
	CommandQueueSize         int `yaml:"command_queue_size"`
	SentinelPollMillis       int `yaml:"sentinel_poll_millis"`
}

// ExtractorConfig sizes the media-info extractor subprocess pool.
type ExtractorConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	PoolSize   int    `yaml:"pool_size"`
}

// SecretConfig is the HMAC secret for signed session values (spec §6).
type SecretConfig struct {
	Value string `yaml:"value"`
}

type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file, expanding $ENV references
// before unmarshalling so deployment secrets never need to live in the
// file itself.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// GetDSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAMQPURL returns the broker connection URL.
func (c *BrokerConfig) GetAMQPURL() string {
	vhost := c.VHost
	if vhost == "/" {
		vhost = ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, vhost)
}

// GetRequestTimeout returns the chat-service HTTP client timeout.
func (c *ChatServiceConfig) GetRequestTimeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RequestTimeout) * time.Second
}

// GetTTL returns the session TTL, defaulting to 1 minute (spec §6).
func (c *SessionConfig) GetTTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// Capacity returns the total number of bot slots this balancer declares.
func (c *BalancerConfig) Capacity() int {
	return c.WorkersCount * c.InstancesPerWorker
}
