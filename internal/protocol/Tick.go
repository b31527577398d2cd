package protocol

import (
	"encoding/json"
	"strconv"
)

// MissingValue is how an absent config number is rendered in human readable text.
const MissingValue = "<nil>"

// Config is the optional object carried by the first tick of a game.
// Keys not listed here are ignored when decoding.
type Config struct {
	Width    *json.Number `json:"width,omitempty"`
	Height   *json.Number `json:"height,omitempty"`
	MaxTicks *json.Number `json:"max_ticks,omitempty"`
	BotSeed  *json.Number `json:"bot_seed,omitempty"`
}

// Tick is the record the arena writes to an agent once per turn.
type Tick struct {
	Config     *Config `json:"config,omitempty"`
	Tick       int     `json:"tick"`
	Bot        [2]int  `json:"bot"`
	Initiative bool    `json:"initiative"`
}

func Number(n int64) *json.Number {
	num := json.Number(strconv.FormatInt(n, 10))
	return &num
}

// Render prints a config number the way it was sent, or MissingValue.
func Render(n *json.Number) string {
	if n == nil {
		return MissingValue
	}
	return n.String()
}

// RenderWidth and RenderHeight accept a nil config.
func (c *Config) RenderWidth() string {
	if c == nil {
		return MissingValue
	}
	return Render(c.Width)
}

func (c *Config) RenderHeight() string {
	if c == nil {
		return MissingValue
	}
	return Render(c.Height)
}
