// ABOUTME: YAML configuration parsing and validation
// ABOUTME: Defines the stream catalogue, player, audio mode, and engine settings
package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Streams   []StreamConfig  `yaml:"streams"`
	Player    PlayerConfig    `yaml:"player"`
	AudioMode AudioModeConfig `yaml:"audio_mode"`
	Engine    EngineConfig    `yaml:"engine"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ListenConfig is the local control API. Port 0 disables it.
type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StreamConfig struct {
	ID               string            `yaml:"id"`
	Name             string            `yaml:"name"`
	URL              string            `yaml:"url"`
	RequestHeaders   map[string]string `yaml:"request_headers"`
	ConnectTimeoutMs int               `yaml:"connect_timeout_ms"`
}

type PlayerConfig struct {
	DefaultStream      string   `yaml:"default_stream"`
	InitialVolume      *float64 `yaml:"initial_volume"`
	SettleDelayMs      int      `yaml:"settle_delay_ms"`
	ProgressIntervalMs int      `yaml:"progress_interval_ms"`
	Autoplay           bool     `yaml:"autoplay"`
}

type AudioModeConfig struct {
	AllowsRecording         bool   `yaml:"allows_recording"`
	PlaysInSilentMode       bool   `yaml:"plays_in_silent_mode"`
	StaysActiveInBackground bool   `yaml:"stays_active_in_background"`
	DuckOthers              bool   `yaml:"duck_others"`
	ThroughEarpiece         bool   `yaml:"through_earpiece"`
	Interruption            string `yaml:"interruption"`
}

type EngineConfig struct {
	SampleRate     int    `yaml:"sample_rate"`
	BufferMs       int    `yaml:"buffer_ms"`
	RingBytes      int    `yaml:"ring_bytes"`
	PrebufferBytes int    `yaml:"prebuffer_bytes"`
	LowWaterBytes  int    `yaml:"low_water_bytes"`
	ICYMetadata    bool   `yaml:"icy_metadata"`
	UserAgent      string `yaml:"user_agent"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate fills defaults and rejects configurations the player cannot run.
func (c *Config) Validate() error {
	if len(c.Streams) == 0 {
		return fmt.Errorf("no streams defined")
	}

	seen := make(map[string]bool, len(c.Streams))
	for i := range c.Streams {
		st := &c.Streams[i]
		if st.ID == "" {
			return fmt.Errorf("stream %d: missing id", i)
		}
		if seen[st.ID] {
			return fmt.Errorf("stream %q: duplicate id", st.ID)
		}
		seen[st.ID] = true

		u, err := url.Parse(st.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("stream %q: url must be http(s), got %q", st.ID, st.URL)
		}
		if st.Name == "" {
			st.Name = st.ID
		}
		if st.ConnectTimeoutMs <= 0 {
			st.ConnectTimeoutMs = 10000
		}
	}

	if c.Player.DefaultStream == "" {
		c.Player.DefaultStream = c.Streams[0].ID
	}
	if !seen[c.Player.DefaultStream] {
		return fmt.Errorf("default_stream %q not defined", c.Player.DefaultStream)
	}

	if c.Player.InitialVolume == nil {
		v := 1.0
		c.Player.InitialVolume = &v
	}
	if v := *c.Player.InitialVolume; v < 0 || v > 1 {
		return fmt.Errorf("initial_volume must be within [0, 1], got %v", v)
	}
	if c.Player.SettleDelayMs <= 0 {
		c.Player.SettleDelayMs = 500
	}
	if c.Player.ProgressIntervalMs <= 0 {
		c.Player.ProgressIntervalMs = 1000
	}

	switch c.AudioMode.Interruption {
	case "", "mix", "do_not_mix", "duck_others":
	default:
		return fmt.Errorf("audio_mode.interruption: unknown mode %q", c.AudioMode.Interruption)
	}

	if c.Engine.SampleRate <= 0 {
		c.Engine.SampleRate = 44100
	}
	if c.Engine.BufferMs <= 0 {
		c.Engine.BufferMs = 100
	}
	if c.Engine.RingBytes <= 0 {
		c.Engine.RingBytes = 512 * 1024
	}
	if c.Engine.PrebufferBytes <= 0 {
		c.Engine.PrebufferBytes = 32 * 1024
	}
	if c.Engine.PrebufferBytes > c.Engine.RingBytes {
		return fmt.Errorf("engine.prebuffer_bytes (%d) exceeds ring_bytes (%d)", c.Engine.PrebufferBytes, c.Engine.RingBytes)
	}
	if c.Engine.LowWaterBytes <= 0 {
		c.Engine.LowWaterBytes = 8 * 1024
	}
	if c.Engine.LowWaterBytes > c.Engine.RingBytes {
		return fmt.Errorf("engine.low_water_bytes (%d) exceeds ring_bytes (%d)", c.Engine.LowWaterBytes, c.Engine.RingBytes)
	}

	if c.Listen.Host == "" {
		c.Listen.Host = "127.0.0.1"
	}

	return nil
}
