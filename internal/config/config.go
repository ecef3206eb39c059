// Package config loads server settings from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Addr is the listen address.
	Addr string
	// StartDelay is the Starting -> InGame settle interval. It matches the
	// client's start animation but is a tunable, not a protocol guarantee.
	StartDelay time.Duration
	// AllowedOrigins are websocket origin patterns; empty means
	// same-origin only.
	AllowedOrigins []string
}

func Load() (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		Addr:       ":3000",
		StartDelay: 3 * time.Second,
	}
	if v := os.Getenv("LOBBY_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("START_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse START_DELAY: %w", err)
		}
		if d < 0 {
			return Config{}, fmt.Errorf("START_DELAY must not be negative, got %s", v)
		}
		cfg.StartDelay = d
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	return cfg, nil
}
