package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Gemini struct {
		Model       string `yaml:"model"`
		MaxAttempts int    `yaml:"max_attempts"`
	} `yaml:"gemini"`
	Game struct {
		Rounds          int `yaml:"rounds"`
		LeaderboardSize int `yaml:"leaderboard_size"`
	} `yaml:"game"`
	Archive struct {
		TTL string `yaml:"ttl"`
	} `yaml:"archive"`
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

// GeminiAPIKey returns the API key from the environment. The key is a
// secret and never lives in the config file.
func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

// TTLDuration parses a duration string or returns the fallback if empty or
// invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
