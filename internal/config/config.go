// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads the prlsc-bridge YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Bridge is the complete prlsc-bridge configuration.
type Bridge struct {
	Serial   Serial    `yaml:"serial"`
	Peer     Peer      `yaml:"peer"`
	Framing  Framing   `yaml:"framing"`
	Services []Service `yaml:"services"`
	Logging  Logging   `yaml:"logging"`
}

// Serial describes the local bus: a serial device and the byte budget used to
// pace writes onto it (bytes per second; 0 disables pacing).
type Serial struct {
	Device     string `yaml:"device"`
	Baud       int    `yaml:"baud"`
	ByteBudget int    `yaml:"byte_budget"`
}

// Peer describes the remote bus endpoint: either a TCP listen address or an
// address to dial, never both.
type Peer struct {
	Listen string `yaml:"listen"`
	Dial   string `yaml:"dial"`
}

// Framing carries the protocol limits. Sentinel bytes are fixed to the SLIP
// set on both buses; only the limits are tunable per deployment.
type Framing struct {
	FrameLengthMax    int `yaml:"frame_length_max"`
	DatagramLengthMax int `yaml:"datagram_length_max"`
}

// Service is one row of the service table, mirrored on both buses.
type Service struct {
	Stream       bool   `yaml:"stream"`
	RateLimit    uint16 `yaml:"rate_limit"`
	OnlyTxLatest bool   `yaml:"only_tx_latest"`
	BufferSize   int    `yaml:"buffer_size"`
}

// Logging selects the daemon's log level and format.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Bridge, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := &Bridge{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Bridge) applyDefaults() {
	if c.Serial.Baud == 0 {
		c.Serial.Baud = 115200
	}
	if c.Framing.FrameLengthMax == 0 {
		c.Framing.FrameLengthMax = 0xFF
	}
	if c.Framing.DatagramLengthMax == 0 {
		c.Framing.DatagramLengthMax = 0x1FF
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Bridge) validate() error {
	if c.Serial.Device == "" {
		return fmt.Errorf("config: serial.device is required")
	}
	if (c.Peer.Listen == "") == (c.Peer.Dial == "") {
		return fmt.Errorf("config: exactly one of peer.listen or peer.dial is required")
	}
	if c.Framing.FrameLengthMax < 1 || c.Framing.FrameLengthMax > 0xFF {
		return fmt.Errorf("config: framing.frame_length_max must be in 1..255, got %d", c.Framing.FrameLengthMax)
	}
	if n := len(c.Services); n < 1 || n > 8 {
		return fmt.Errorf("config: between 1 and 8 services are required, got %d", n)
	}
	if c.Serial.ByteBudget < 0 {
		return fmt.Errorf("config: serial.byte_budget must not be negative")
	}
	return nil
}
