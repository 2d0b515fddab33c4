// Package config loads engine settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/stepsynth-go/internal/effects"
)

type Config struct {
	SampleRate          int            `yaml:"sample_rate"`
	MasterVolume        float64        `yaml:"master_volume"`
	BPM                 float64        `yaml:"bpm"`
	LookaheadMs         int            `yaml:"lookahead_ms"`
	TickIntervalMs      int            `yaml:"tick_interval_ms"`
	MaxHeldVoiceSeconds float64        `yaml:"max_held_voice_seconds"`
	MIDIPort            string         `yaml:"midi_port"`
	Effects             effects.Config `yaml:"effects"`
}

func Default() Config {
	return Config{
		SampleRate:          44100,
		MasterVolume:        0.5,
		BPM:                 120,
		LookaheadMs:         100,
		TickIntervalMs:      25,
		MaxHeldVoiceSeconds: 30,
		Effects:             effects.DefaultConfig(),
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate %d out of range [8000, 192000]", c.SampleRate))
	}
	if c.MasterVolume < 0 || c.MasterVolume > 1 {
		errs = append(errs, fmt.Errorf("master_volume %v out of range [0, 1]", c.MasterVolume))
	}
	if c.BPM <= 0 {
		errs = append(errs, fmt.Errorf("bpm must be positive, got %v", c.BPM))
	}
	if c.LookaheadMs <= 0 || c.TickIntervalMs <= 0 {
		errs = append(errs, errors.New("lookahead_ms and tick_interval_ms must be positive"))
	}
	if c.TickIntervalMs >= c.LookaheadMs {
		errs = append(errs, fmt.Errorf("tick_interval_ms %d must be shorter than lookahead_ms %d", c.TickIntervalMs, c.LookaheadMs))
	}
	if c.MaxHeldVoiceSeconds < 0 {
		errs = append(errs, errors.New("max_held_voice_seconds must not be negative"))
	}
	for name, v := range map[string]float64{
		"delay_send":  c.Effects.DelaySend,
		"chorus_send": c.Effects.ChorusSend,
		"reverb_send": c.Effects.ReverbSend,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("effects.%s %v out of range [0, 1]", name, v))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
