package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileOverlay is the subset of settings that may be tuned from a YAML file.
type fileOverlay struct {
	Upload struct {
		MaxBytes int64 `yaml:"max_bytes"`
	} `yaml:"upload"`
	Extraction struct {
		Concurrency int    `yaml:"concurrency"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"extraction"`
	CORS struct {
		AllowOrigins []string `yaml:"allow_origins"`
	} `yaml:"cors"`
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return applyYAML(cfg, raw)
}

func applyYAML(cfg *Config, raw []byte) error {
	var overlay fileOverlay
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if overlay.Upload.MaxBytes > 0 {
		cfg.MaxUploadBytes = overlay.Upload.MaxBytes
	}
	if overlay.Extraction.Concurrency > 0 {
		cfg.ExtractionConcurrency = overlay.Extraction.Concurrency
	}
	if overlay.Extraction.Timeout != "" {
		d, err := time.ParseDuration(overlay.Extraction.Timeout)
		if err != nil {
			return fmt.Errorf("extraction.timeout: %w", err)
		}
		cfg.ExtractionTimeout = d
	}
	if len(overlay.CORS.AllowOrigins) > 0 {
		cfg.CORSAllowOrigin = overlay.CORS.AllowOrigins
	}
	return nil
}
