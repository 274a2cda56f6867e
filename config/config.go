package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the full runtime configuration of the server
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Media    MediaConfig    `koanf:"media"`
	Redis    RedisConfig    `koanf:"redis"`
	Feed     FeedConfig     `koanf:"feed"`
	Presence PresenceConfig `koanf:"presence"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	CORSOrigins    []string      `koanf:"cors_origins"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// StoreConfig selects the engagement store backend.
// Driver is "dynamodb" in production and "memory" for local runs.
type StoreConfig struct {
	Driver             string `koanf:"driver"`
	Region             string `koanf:"region"`
	ContentTable       string `koanf:"content_table"`
	StoriesTable       string `koanf:"stories_table"`
	EdgesTable         string `koanf:"edges_table"`
	NotificationsTable string `koanf:"notifications_table"`
	UsersTable         string `koanf:"users_table"`
}

type MediaConfig struct {
	Bucket string        `koanf:"bucket"`
	URLTTL time.Duration `koanf:"url_ttl"`
}

// RedisConfig enables cross-instance fan-out when URL is set
type RedisConfig struct {
	URL     string `koanf:"url"`
	Channel string `koanf:"channel"`
}

type FeedConfig struct {
	CandidatePoolSize    int           `koanf:"candidate_pool_size"`
	ParallelThreshold    int           `koanf:"parallel_threshold"`
	Timeout              time.Duration `koanf:"timeout"`
	MaximaCacheTTL       time.Duration `koanf:"maxima_cache_ttl"`
	BreakerFailures      uint32        `koanf:"breaker_failures"`
	BreakerOpenTimeout   time.Duration `koanf:"breaker_open_timeout"`
	InteractionLookback  time.Duration `koanf:"interaction_lookback"`
	MaxAuthorItemsOnPage int           `koanf:"max_author_items_on_page"`
}

type PresenceConfig struct {
	SweepInterval time.Duration `koanf:"sweep_interval"`
	StaleAfter    time.Duration `koanf:"stale_after"`
	EventRate     float64       `koanf:"event_rate"`
	EventBurst    int           `koanf:"event_burst"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	switch c.Store.Driver {
	case "dynamodb", "memory":
	default:
		errs = append(errs, fmt.Errorf("store.driver must be dynamodb or memory, got %q", c.Store.Driver))
	}
	if c.Feed.CandidatePoolSize < 1 {
		errs = append(errs, errors.New("feed.candidate_pool_size must be at least 1"))
	}
	if c.Feed.MaxAuthorItemsOnPage < 1 {
		errs = append(errs, errors.New("feed.max_author_items_on_page must be at least 1"))
	}
	if c.Feed.Timeout <= 0 {
		errs = append(errs, errors.New("feed.timeout must be positive"))
	}
	if c.Presence.StaleAfter <= 0 {
		errs = append(errs, errors.New("presence.stale_after must be positive"))
	}
	if c.Presence.SweepInterval <= 0 {
		errs = append(errs, errors.New("presence.sweep_interval must be positive"))
	}
	if c.Presence.EventRate <= 0 || c.Presence.EventBurst < 1 {
		errs = append(errs, errors.New("presence.event_rate and presence.event_burst must be positive"))
	}

	return errors.Join(errs...)
}
