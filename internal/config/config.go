// Package config loads the coordination core's environment, following the
// shape of the original Settings object: a2a_timeout, a2a_max_retries,
// max_retrieval_results, similarity_threshold, plus the ambient HTTP,
// trace-store and logging settings that sit outside the core proper.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the coordination core's environment. All settings outside the
// four named here belong to collaborators and are grouped together for
// convenience of a single process, not because the core reads them.
type Config struct {
	A2ATimeout          time.Duration `yaml:"a2a_timeout"`
	A2AMaxRetries       int           `yaml:"a2a_max_retries"`
	MaxRetrievalResults int           `yaml:"max_retrieval_results"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`

	HTTPAddr       string  `yaml:"http_addr"`
	TraceDBPath    string  `yaml:"trace_db_path"`
	LogLevel       string  `yaml:"log_level"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// rawConfig mirrors Config but with a2a_timeout as a plain string, since
// yaml.v3 has no built-in time.Duration unmarshaler.
type rawConfig struct {
	A2ATimeout          string  `yaml:"a2a_timeout"`
	A2AMaxRetries       int     `yaml:"a2a_max_retries"`
	MaxRetrievalResults int     `yaml:"max_retrieval_results"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	HTTPAddr            string  `yaml:"http_addr"`
	TraceDBPath         string  `yaml:"trace_db_path"`
	LogLevel            string  `yaml:"log_level"`
	RateLimitRPS        float64 `yaml:"rate_limit_rps"`
	RateLimitBurst      int     `yaml:"rate_limit_burst"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		A2ATimeout:          30 * time.Second,
		A2AMaxRetries:       2,
		MaxRetrievalResults: 10,
		SimilarityThreshold: 0.75,
		HTTPAddr:            ":8080",
		TraceDBPath:         "coordinator.db",
		LogLevel:            "info",
		RateLimitRPS:        5,
		RateLimitBurst:      10,
	}
}

// Load reads a YAML config file at path, applying Defaults() for any zero
// field left unset. A missing a2a_timeout/max_retrieval_results/etc. is
// not an error here -- a missing required setting is raised by the caller
// that needs a value Load couldn't fill in, not by Load itself.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if raw.A2ATimeout != "" {
		d, err := time.ParseDuration(raw.A2ATimeout)
		if err != nil {
			return Config{}, fmt.Errorf("config: a2a_timeout: %w", err)
		}
		cfg.A2ATimeout = d
	}
	if raw.A2AMaxRetries != 0 {
		cfg.A2AMaxRetries = raw.A2AMaxRetries
	}
	if raw.MaxRetrievalResults != 0 {
		cfg.MaxRetrievalResults = raw.MaxRetrievalResults
	}
	if raw.SimilarityThreshold != 0 {
		cfg.SimilarityThreshold = raw.SimilarityThreshold
	}
	if raw.HTTPAddr != "" {
		cfg.HTTPAddr = raw.HTTPAddr
	}
	if raw.TraceDBPath != "" {
		cfg.TraceDBPath = raw.TraceDBPath
	}
	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}
	if raw.RateLimitRPS != 0 {
		cfg.RateLimitRPS = raw.RateLimitRPS
	}
	if raw.RateLimitBurst != 0 {
		cfg.RateLimitBurst = raw.RateLimitBurst
	}
	return cfg, nil
}

// Validate raises ConfigMissing-equivalent errors for settings the core
// cannot run without.
func (c Config) Validate() error {
	if c.A2ATimeout <= 0 {
		return fmt.Errorf("config: a2a_timeout must be positive")
	}
	if c.MaxRetrievalResults < 1 {
		return fmt.Errorf("config: max_retrieval_results must be >= 1")
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("config: similarity_threshold must be in [0,1]")
	}
	return nil
}
