package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	configFileName = "config.toml"

	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

type config struct {
	API  apiConfig  `toml:"api"`
	Boot bootConfig `toml:"boot"`
	Rain rainConfig `toml:"rain"`
}

type apiConfig struct {
	BaseURL     string   `toml:"base_url"`
	Models      []string `toml:"models"`
	Temperature float64  `toml:"temperature"`
	Timeout     duration `toml:"timeout"`
}

type bootConfig struct {
	Enabled   bool     `toml:"enabled"`
	TypeDelay duration `toml:"type_delay"`
	LineDelay duration `toml:"line_delay"`
}

type rainConfig struct {
	Interval duration `toml:"interval"`
	Glyphs   string   `toml:"glyphs"`
	Bright   string   `toml:"bright"`
	Dim      string   `toml:"dim"`
}

// duration lets config files spell durations as "50ms" or "1m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func defaultConfig() config {
	return config{
		API: apiConfig{
			BaseURL:     defaultBaseURL,
			Models:      []string{"gpt-4o", "chatgpt-4o-latest", defaultModel},
			Temperature: 0.7,
			Timeout:     duration{60 * time.Second},
		},
		Boot: bootConfig{
			Enabled:   true,
			TypeDelay: duration{30 * time.Millisecond},
			LineDelay: duration{500 * time.Millisecond},
		},
		Rain: rainConfig{
			Interval: duration{defaultRainInterval},
			Glyphs:   defaultRainGlyphs,
			Bright:   "#00ff00",
			Dim:      "#005f00",
		},
	}
}

// loadConfig reads the config file at path on top of the defaults. A missing
// file is not an error.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return config{}, fmt.Errorf("error decoding %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		slog.Warn("unknown config key", slog.String("key", key.String()), slog.String("path", path))
	}

	if base := os.Getenv("TERMINUS_API_BASE"); base != "" {
		cfg.API.BaseURL = base
	}

	if err := cfg.validate(); err != nil {
		return config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

func (c config) validate() error {
	if len(c.API.Models) == 0 {
		return errors.New("api.models must list at least one model")
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is empty")
	}
	if c.Rain.Interval.Duration <= 0 {
		return fmt.Errorf("rain.interval must be positive, got %s", c.Rain.Interval)
	}
	if _, err := rainGlyphs(c.Rain.Glyphs); err != nil {
		return err
	}
	if c.Boot.TypeDelay.Duration < 0 || c.Boot.LineDelay.Duration < 0 {
		return errors.New("boot delays must not be negative")
	}
	return nil
}

var errInvalidModel = errors.New("model is not configured")

func (c config) hasModel(model string) bool {
	return slices.Contains(c.API.Models, model)
}

func (c config) checkModel(model string) error {
	if !c.hasModel(model) {
		return fmt.Errorf("%w: %q, available: %s", errInvalidModel, model, strings.Join(c.API.Models, ", "))
	}
	return nil
}
