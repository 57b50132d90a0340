// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
serial:
  device: /dev/ttyUSB0
peer:
  listen: ":7654"
services:
  - stream: true
    rate_limit: 100
  - stream: false
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Serial.Baud != 115200 {
		t.Fatalf("baud = %d, want default 115200", cfg.Serial.Baud)
	}
	if cfg.Framing.FrameLengthMax != 0xFF || cfg.Framing.DatagramLengthMax != 0x1FF {
		t.Fatalf("framing defaults: %+v", cfg.Framing)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Fatalf("logging defaults: %+v", cfg.Logging)
	}
	if len(cfg.Services) != 2 || !cfg.Services[0].Stream || cfg.Services[0].RateLimit != 100 {
		t.Fatalf("services: %+v", cfg.Services)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			"missing device",
			"peer: {listen: \":1\"}\nservices: [{stream: true}]\n",
			"serial.device",
		},
		{
			"both peer modes",
			"serial: {device: /dev/ttyUSB0}\npeer: {listen: \":1\", dial: \"h:1\"}\nservices: [{stream: true}]\n",
			"peer.listen or peer.dial",
		},
		{
			"no peer mode",
			"serial: {device: /dev/ttyUSB0}\nservices: [{stream: true}]\n",
			"peer.listen or peer.dial",
		},
		{
			"no services",
			"serial: {device: /dev/ttyUSB0}\npeer: {dial: \"h:1\"}\n",
			"services",
		},
		{
			"too many services",
			"serial: {device: /dev/ttyUSB0}\npeer: {dial: \"h:1\"}\nservices: [{},{},{},{},{},{},{},{},{}]\n",
			"services",
		},
		{
			"frame length out of range",
			"serial: {device: /dev/ttyUSB0}\npeer: {dial: \"h:1\"}\nframing: {frame_length_max: 300}\nservices: [{}]\n",
			"frame_length_max",
		},
	}
	for _, c := range cases {
		_, err := Load(writeConfig(t, c.body))
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Fatalf("%s: err = %v, want mention of %q", c.name, err, c.want)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
