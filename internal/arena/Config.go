package arena

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultWidth        = 20
	DefaultHeight       = 20
	DefaultMaxTicks     = 200
	DefaultSeed         = 1
	DefaultRounds       = 1
	DefaultTickInterval = 100 * time.Millisecond
	DefaultDBPath       = "matches.db"

	// how long a child agent gets to exit on its own after stdin is closed
	agentExitGrace = 200 * time.Millisecond
)

var ErrInvalidConfig = errors.New("invalid arena config")

type Config struct {
	Width    int   `yaml:"width"`
	Height   int   `yaml:"height"`
	MaxTicks int   `yaml:"max_ticks"`
	Seed     int64 `yaml:"seed"`
	// Rounds above one play a series, each round on a seed derived from Seed.
	Rounds int `yaml:"rounds"`
	// Agent is the argv of the agent process. Empty runs the built-in walker in-process.
	Agent        []string      `yaml:"agent"`
	TickInterval time.Duration `yaml:"tick_interval"`
	DBPath       string        `yaml:"db_path"`
}

func DefaultConfig() Config {
	return Config{
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		MaxTicks:     DefaultMaxTicks,
		Seed:         DefaultSeed,
		Rounds:       DefaultRounds,
		TickInterval: DefaultTickInterval,
		DBPath:       DefaultDBPath,
	}
}

// LoadConfig returns the defaults overlaid with the YAML file at path, if any.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: map must be at least 1x1, got %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if c.MaxTicks <= 0 {
		return fmt.Errorf("%w: max_ticks must be positive, got %d", ErrInvalidConfig, c.MaxTicks)
	}
	if c.Rounds <= 0 {
		return fmt.Errorf("%w: rounds must be positive, got %d", ErrInvalidConfig, c.Rounds)
	}
	if c.TickInterval < 0 {
		return fmt.Errorf("%w: tick_interval must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) AgentLabel() string {
	if len(c.Agent) == 0 {
		return "builtin"
	}
	return c.Agent[0]
}
