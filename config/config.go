package config

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"formbot/model"
)

// Config is the template catalog plus the welcome message shown on
// /start. Loaded once at startup and replaced wholesale on reload; the
// engine never sees a half-populated catalog.
type Config struct {
	Welcome   string           `yaml:"welcome"`
	Templates []model.Template `yaml:"templates"`
}

// Parse decodes and validates a raw config payload.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.Welcome == "" {
		return Config{}, fmt.Errorf("config: %w: welcome", model.ErrMissingField)
	}
	if len(cfg.Templates) == 0 {
		return Config{}, fmt.Errorf("config: %w: templates", model.ErrMissingField)
	}
	for i, t := range cfg.Templates {
		if err := t.Validate(); err != nil {
			return Config{}, fmt.Errorf("config: template %d: %w", i, err)
		}
	}
	return cfg, nil
}

// Load reads the catalog from source, which may be an http(s) URL or a
// local file path. Any failure, malformed content included, falls back
// to the built-in catalog so the engine is never left without
// templates. An empty source loads the built-in catalog directly.
func Load(source string) Config {
	if source == "" {
		log.Info().Msg("no config source set, using built-in catalog")
		return Builtin()
	}
	data, err := fetch(source)
	if err != nil {
		log.Warn().Err(err).Str("source", source).Msg("config load failed, using built-in catalog")
		return Builtin()
	}
	cfg, err := Parse(data)
	if err != nil {
		log.Warn().Err(err).Str("source", source).Msg("config malformed, using built-in catalog")
		return Builtin()
	}
	log.Info().Int("templates", len(cfg.Templates)).Str("source", source).Msg("config loaded")
	return cfg
}

func fetch(source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return nil, fmt.Errorf("config: fetch %s: %w", source, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("config: fetch %s: status %d", source, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", source, err)
	}
	return data, nil
}
