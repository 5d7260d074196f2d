// Package config reads the service settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort        string        `envconfig:"HTTP_PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"30m"`

	MongoURI            string        `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase       string        `envconfig:"MONGO_DATABASE" default:"storefront"`
	MongoMaxPoolSize    uint64        `envconfig:"MONGO_MAX_POOL_SIZE" default:"100"`
	MongoMinPoolSize    uint64        `envconfig:"MONGO_MIN_POOL_SIZE" default:"10"`
	MongoConnectTimeout time.Duration `envconfig:"MONGO_CONNECT_TIMEOUT" default:"10s"`
	MongoSelectTimeout  time.Duration `envconfig:"MONGO_SERVER_SELECTION_TIMEOUT" default:"5s"`
	SessionTTL          time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	SessionIdle         time.Duration `envconfig:"SESSION_IDLE" default:"30m"`
	WriteTimeout        time.Duration `envconfig:"PERSIST_WRITE_TIMEOUT" default:"5s"`

	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	CheckoutTopic  string   `envconfig:"CHECKOUT_TOPIC" default:"checkout-requests"`
	CompletedTopic string   `envconfig:"CHECKOUT_OUTBOX_TOPIC" default:"checkout-outbox"`
	ConsumerGroup  string   `envconfig:"CONSUMER_GROUP" default:"storefront-cart"`

	CatalogURL              string        `envconfig:"CATALOG_URL" default:"http://localhost:3000"`
	CatalogTimeout          time.Duration `envconfig:"CATALOG_TIMEOUT" default:"3s"`
	CatalogFailureThreshold uint32        `envconfig:"CATALOG_FAILURE_THRESHOLD" default:"5"`
	CatalogOpenTimeout      time.Duration `envconfig:"CATALOG_OPEN_TIMEOUT" default:"30s"`
	CatalogHalfOpenRequests uint32        `envconfig:"CATALOG_HALF_OPEN_REQUESTS" default:"1"`
}

// Load reads the settings prefixed with prefix (e.g. CART_HTTP_PORT for "cart").
func Load(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("at least one kafka broker is required")
	}
	if c.MongoMinPoolSize > c.MongoMaxPoolSize {
		return fmt.Errorf("mongo min pool size %d exceeds max %d", c.MongoMinPoolSize, c.MongoMaxPoolSize)
	}
	if c.CatalogFailureThreshold == 0 {
		return fmt.Errorf("catalog failure threshold must be positive")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if strings.TrimSpace(c.MongoDatabase) == "" {
		return fmt.Errorf("mongo database name is required")
	}
	return nil
}
