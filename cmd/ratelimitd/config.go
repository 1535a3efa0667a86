package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/lodgekit/ratelimit/pkg/limiter"
)

// config describes the ratelimitd YAML configuration.
type config struct {
	Server struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"server"`
	Storage struct {
		Type  string `yaml:"type"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"storage"`
	Classes []classConfig `yaml:"classes"`
}

// classConfig is one endpoint class as declared in YAML.
type classConfig struct {
	Name           string  `yaml:"name"`
	Algorithm      string  `yaml:"algorithm"`
	WindowMs       int64   `yaml:"window_ms"`
	MaxRequests    int64   `yaml:"max_requests"`
	BucketCapacity int64   `yaml:"bucket_capacity"`
	RefillRate     float64 `yaml:"refill_rate_per_second"`
}

// limiterConfig converts a YAML class to the library's Config. Defaults
// for the token-bucket fields are the library's concern.
func (c classConfig) limiterConfig() limiter.Config {
	return limiter.Config{
		Name:           c.Name,
		Algorithm:      limiter.Algorithm(c.Algorithm),
		Window:         time.Duration(c.WindowMs) * time.Millisecond,
		MaxRequests:    c.MaxRequests,
		BucketCapacity: c.BucketCapacity,
		RefillRate:     c.RefillRate,
	}
}

// loadConfig reads, defaults, and validates the configuration file. A .env
// file and environment variables override the listen and Redis addresses,
// which keeps container deployments away from editing YAML.
func loadConfig(path string) (config, error) {
	_ = godotenv.Load()

	var cfg config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}

	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if v := os.Getenv("RATELIMITD_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}

	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "memory"
	case "memory":
	case "redis":
		if cfg.Storage.Redis.Addr == "" {
			cfg.Storage.Redis.Addr = "localhost:6379"
		}
		if v := os.Getenv("REDIS_ADDR"); v != "" {
			cfg.Storage.Redis.Addr = v
		}
	default:
		return cfg, errors.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}

	if len(cfg.Classes) == 0 {
		return cfg, errors.New("at least one class is required")
	}
	seen := make(map[string]bool, len(cfg.Classes))
	for i, cl := range cfg.Classes {
		if cl.Name == "" {
			return cfg, errors.Errorf("classes[%d]: name is required", i)
		}
		if seen[cl.Name] {
			return cfg, errors.Errorf("duplicate class %q", cl.Name)
		}
		seen[cl.Name] = true
		switch limiter.Algorithm(cl.Algorithm) {
		case limiter.FixedWindow, limiter.SlidingWindow, limiter.TokenBucket:
		default:
			return cfg, errors.Errorf("class %q: unknown algorithm %q", cl.Name, cl.Algorithm)
		}
		if cl.WindowMs <= 0 {
			return cfg, errors.Errorf("class %q: window_ms must be positive", cl.Name)
		}
		if cl.MaxRequests <= 0 {
			return cfg, errors.Errorf("class %q: max_requests must be positive", cl.Name)
		}
	}
	return cfg, nil
}
