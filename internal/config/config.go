package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port       string `yaml:"port"`
		AdminToken string `yaml:"admin_token"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Queue struct {
		StreamPrefix  string `yaml:"stream_prefix"`
		Group         string `yaml:"group"`
		Partitions    int    `yaml:"partitions"`
		Visibility    string `yaml:"visibility"`
		MaxDeliveries int    `yaml:"max_deliveries"`
		MaxInFlight   int    `yaml:"max_in_flight"`
		PublishBuffer int    `yaml:"publish_buffer"`
	} `yaml:"queue"`
	Consumer struct {
		Shards       int    `yaml:"shards"`
		RetryCount   int    `yaml:"retry_count"`
		RetryBackoff string `yaml:"retry_backoff"`
	} `yaml:"consumer"`
	Exam struct {
		TimePerQuestion string `yaml:"time_per_question"`
		Cache           struct {
			TTL string `yaml:"ttl"`
		} `yaml:"cache"`
	} `yaml:"exam"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// PositiveInt returns n when it is positive, the fallback otherwise.
func PositiveInt(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}
