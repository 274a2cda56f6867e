package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pulse/config.yaml",
}

const ConfigPathEnvVar = "CONFIG_PATH"

// envSections are the top-level keys an environment variable can address.
// SERVER_PORT -> server.port, FEED_CANDIDATE_POOL_SIZE -> feed.candidate_pool_size
var envSections = []string{"server", "store", "media", "redis", "feed", "presence", "logging"}

// sliceConfigPaths arrive from the environment as comma-separated strings
var sliceConfigPaths = []string{"server.cors_origins"}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			CORSOrigins:    []string{"*"},
			RequestTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			Driver:             "dynamodb",
			Region:             "",
			ContentTable:       "Content",
			StoriesTable:       "Stories",
			EdgesTable:         "SocialEdges",
			NotificationsTable: "Notifications",
			UsersTable:         "Users",
		},
		Media: MediaConfig{
			Bucket: "",
			URLTTL: 15 * time.Minute,
		},
		Redis: RedisConfig{
			URL:     "",
			Channel: "pulse:fanout",
		},
		Feed: FeedConfig{
			CandidatePoolSize:    100,
			ParallelThreshold:    50,
			Timeout:              3 * time.Second,
			MaximaCacheTTL:       time.Minute,
			BreakerFailures:      5,
			BreakerOpenTimeout:   30 * time.Second,
			InteractionLookback:  30 * 24 * time.Hour,
			MaxAuthorItemsOnPage: 3,
		},
		Presence: PresenceConfig{
			SweepInterval: time.Minute,
			StaleAfter:    5 * time.Minute,
			EventRate:     20,
			EventBurst:    40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from, in increasing priority:
//  1. built-in defaults
//  2. an optional YAML file
//  3. environment variables
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// PORT and AWS_REGION are what the hosting platform sets
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SERVER_PORT") == "" {
		if _, err := fmt.Sscanf(port, "%d", &cfg.Server.Port); err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
	}
	if cfg.Store.Region == "" {
		cfg.Store.Region = os.Getenv("AWS_REGION")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps SECTION_SOME_KEY to section.some_key and drops
// variables that do not belong to a known section
func envTransformFunc(key string) string {
	lower := strings.ToLower(key)
	for _, section := range envSections {
		if strings.HasPrefix(lower, section+"_") {
			return section + "." + strings.TrimPrefix(lower, section+"_")
		}
	}
	return ""
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(raw, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return err
		}
	}
	return nil
}
