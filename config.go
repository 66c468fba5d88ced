// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wlc

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the poller tuning knobs. Zero durations and counts fall
// back to the DefaultConfig value. Ptx and PowerClass are taken as given,
// so start from DefaultConfig or ParseConfig to get the default Ptx.
type Config struct {
	// InitialDelay is the wait before the first ReadCapability step
	InitialDelay time.Duration `yaml:"initial_delay"`

	// PresenceCheckInterval is armed while a long WPT cycle sleeps
	PresenceCheckInterval time.Duration `yaml:"presence_check_interval"`

	// ErrorPresenceCheckInterval is armed when a listener message cannot be
	// framed at all
	ErrorPresenceCheckInterval time.Duration `yaml:"error_presence_check_interval"`

	// IOTimeout bounds each transport read and write
	IOTimeout time.Duration `yaml:"io_timeout"`

	// MaxContinue caps back-to-back immediate steps before a 1 ms sleep
	MaxContinue int `yaml:"max_continue"`

	// Ptx is the transmit power advertised in WLCP_INFO
	Ptx uint8 `yaml:"ptx"`

	// PowerClass is the poller power class advertised in WLCP_INFO
	PowerClass uint8 `yaml:"power_class"`
}

// DefaultConfig returns the default poller configuration
func DefaultConfig() *Config {
	return &Config{
		InitialDelay:               50 * time.Millisecond,
		PresenceCheckInterval:      DefaultPresenceCheckInterval,
		ErrorPresenceCheckInterval: 125 * time.Millisecond,
		IOTimeout:                  500 * time.Millisecond,
		MaxContinue:                8,
		Ptx:                        100,
		PowerClass:                 0,
	}
}

// withDefaults returns a copy of cfg with zero timings filled in
func (cfg *Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg == nil {
		return *def
	}
	out := *cfg
	if out.InitialDelay <= 0 {
		out.InitialDelay = def.InitialDelay
	}
	if out.PresenceCheckInterval <= 0 {
		out.PresenceCheckInterval = def.PresenceCheckInterval
	}
	if out.ErrorPresenceCheckInterval <= 0 {
		out.ErrorPresenceCheckInterval = def.ErrorPresenceCheckInterval
	}
	if out.IOTimeout <= 0 {
		out.IOTimeout = def.IOTimeout
	}
	if out.MaxContinue <= 0 {
		out.MaxContinue = def.MaxContinue
	}
	return out
}

// PowerInfo returns the WLCP_INFO record advertised by this poller
func (cfg *Config) PowerInfo() PowerInfo {
	c := cfg.withDefaults()
	return PowerInfo{Ptx: c.Ptx, PowerClass: c.PowerClass}
}

// ParseConfig decodes YAML over DefaultConfig
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads and decodes a YAML config file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}
