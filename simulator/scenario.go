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

package simulator

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	wlc "github.com/ZaparooProject/go-wlc"
	"gopkg.in/yaml.v3"
)

// Scenario validation errors
var (
	ErrNoSteps        = errors.New("scenario has no steps")
	ErrNoCapability   = errors.New("first step must present a capability")
	ErrAmbiguousStep  = errors.New("step must set exactly one of capability, control, raw, no_data, remove")
	ErrUnknownMode    = errors.New("unknown capability mode")
	ErrUnknownStopEnd = errors.New("unknown transfer end")
)

// Scenario scripts a WLC listener read by read
type Scenario struct {
	Name string `yaml:"name"`

	// TransferEnd is how every power transfer ends: "completed" or "fod"
	TransferEnd string `yaml:"transfer_end"`

	Steps []Step `yaml:"steps"`

	Jitter Jitter `yaml:"jitter"`

	// TimeScale shortens simulated transfer durations; zero means 1
	TimeScale float64 `yaml:"time_scale"`

	MultiTag       bool `yaml:"multi_tag"`
	RejectEnable   bool `yaml:"reject_enable"`
	RejectTransfer bool `yaml:"reject_transfer"`
}

// Jitter adds random latency to every listener read
type Jitter struct {
	MaxLatency time.Duration `yaml:"max_latency"`
	Seed       uint64        `yaml:"seed"`
}

// Step is the message the listener presents for one or more reads
type Step struct {
	Capability *CapabilitySpec `yaml:"capability"`
	Control    *ControlSpec    `yaml:"control"`
	Status     *StatusSpec     `yaml:"status"`
	Vendor     *VendorSpec     `yaml:"vendor"`

	// Raw is a hex NDEF message served as is
	Raw string `yaml:"raw"`

	// Repeat serves the step this many extra times
	Repeat int `yaml:"repeat"`

	NoData bool `yaml:"no_data"`
	Remove bool `yaml:"remove"`
}

// CapabilitySpec describes a WLC_CAP record field by field
type CapabilitySpec struct {
	Mode             string `yaml:"mode"`
	MaxRetries       uint8  `yaml:"max_retries"`
	CapWaitExp       uint8  `yaml:"cap_wait_exp"`
	NdefReadWait     uint8  `yaml:"ndef_read_wait"`
	NdefWriteTimeExp uint8  `yaml:"ndef_write_time_exp"`
	NdefWriteWait    uint8  `yaml:"ndef_write_wait"`
	NegoWait         bool   `yaml:"nego_wait"`
	ReadConfirm      bool   `yaml:"read_confirm"`
}

// ControlSpec describes a WLC_CTL record field by field
type ControlSpec struct {
	PowerAdjust    int8  `yaml:"power_adjust"`
	Sequence       uint8 `yaml:"sequence"`
	BatteryStatus  uint8 `yaml:"battery_status"`
	BatteryLevel   uint8 `yaml:"battery_level"`
	WptDurationExp uint8 `yaml:"wpt_duration_exp"`
	HoldOffWait    uint8 `yaml:"hold_off_wait"`
	Error          bool  `yaml:"error"`
	Wpt            bool  `yaml:"wpt"`
	InfoRequest    bool  `yaml:"info_request"`
}

// StatusSpec describes a WLC_STAI record; nil fields are not announced
type StatusSpec struct {
	BatteryLevel        *uint8 `yaml:"battery_level"`
	ReceivePower        *uint8 `yaml:"receive_power"`
	ReceiveVoltage      *uint8 `yaml:"receive_voltage"`
	BatteryTemperature  *int8  `yaml:"battery_temperature"`
	ListenerTemperature *int8  `yaml:"listener_temperature"`
}

// VendorSpec describes a usi:wlc record
type VendorSpec struct {
	DeviceID uint64 `yaml:"device_id"`
	VendorID uint16 `yaml:"vendor_id"`
}

// ParseScenario decodes a YAML scenario and validates it
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScenario reads a YAML scenario file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-chosen path
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data)
}

// Validate checks that every step presents exactly one thing
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return ErrNoSteps
	}
	if s.Steps[0].Capability == nil && s.Steps[0].Raw == "" {
		return ErrNoCapability
	}
	if _, err := s.stopReason(); err != nil {
		return err
	}
	for i, step := range s.Steps {
		if step.kinds() != 1 {
			return fmt.Errorf("step %d: %w", i, ErrAmbiguousStep)
		}
		if _, err := step.Message(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

func (s *Scenario) stopReason() (wlc.StopReason, error) {
	switch strings.ToLower(s.TransferEnd) {
	case "", "completed":
		return wlc.StopTimeCompleted, nil
	case "fod", "removal":
		return wlc.StopFodOrRemoval, nil
	default:
		return wlc.StopError, fmt.Errorf("%w: %q", ErrUnknownStopEnd, s.TransferEnd)
	}
}

func (s *Scenario) timeScale() float64 {
	if s.TimeScale <= 0 {
		return 1
	}
	return s.TimeScale
}

func (st *Step) kinds() int {
	n := 0
	for _, set := range []bool{st.Capability != nil, st.Control != nil, st.Raw != "", st.NoData, st.Remove} {
		if set {
			n++
		}
	}
	return n
}

// Message returns the raw NDEF message the step presents, or nil for
// no_data and remove steps
func (st *Step) Message() ([]byte, error) {
	switch {
	case st.Raw != "":
		raw, err := hex.DecodeString(strings.ReplaceAll(st.Raw, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("invalid raw message: %w", err)
		}
		return raw, nil
	case st.Capability != nil:
		payload, err := st.Capability.Encode()
		if err != nil {
			return nil, err
		}
		records := []wlc.Record{wlc.NewRecord(wlc.RecordCapability, payload)}
		if st.Status != nil {
			records = append(records, wlc.NewRecord(wlc.RecordStatus, st.Status.Encode()))
		}
		if st.Vendor != nil {
			records = append(records, wlc.NewRecord(wlc.RecordVendorID, st.Vendor.Encode()))
		}
		return wlc.MarshalRecords(records...)
	case st.Control != nil:
		records := []wlc.Record{wlc.NewRecord(wlc.RecordControl, st.Control.Encode())}
		if st.Status != nil {
			records = append(records, wlc.NewRecord(wlc.RecordStatus, st.Status.Encode()))
		}
		return wlc.MarshalRecords(records...)
	default:
		return nil, nil
	}
}

func parseMode(name string) (wlc.ModeReq, error) {
	switch strings.ToLower(name) {
	case "static":
		return wlc.ModeStatic, nil
	case "", "negotiated":
		return wlc.ModeNegotiated, nil
	case "battery-full", "full":
		return wlc.ModeBatteryFull, nil
	default:
		return wlc.ModeReserved, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
}

// Encode builds the 6-byte WLC_CAP payload
func (c *CapabilitySpec) Encode() ([]byte, error) {
	mode, err := parseMode(c.Mode)
	if err != nil {
		return nil, err
	}
	b1 := uint8(mode)<<6 | (c.MaxRetries&0x0F)<<2
	if c.NegoWait {
		b1 |= 0x02
	}
	if c.ReadConfirm {
		b1 |= 0x01
	}
	return []byte{
		0x10, // protocol version 1.0
		b1,
		c.CapWaitExp & 0x1F,
		c.NdefReadWait,
		c.NdefWriteTimeExp,
		c.NdefWriteWait,
	}, nil
}

// Encode builds the 6-byte WLC_CTL payload
func (c *ControlSpec) Encode() []byte {
	b0 := (c.BatteryStatus&0x03)<<3 | c.Sequence&0x07
	if c.Error {
		b0 |= 0x80
	}
	b1 := (c.WptDurationExp & 0x1F) << 1
	if c.Wpt {
		b1 |= 0x40
	}
	if c.InfoRequest {
		b1 |= 0x01
	}
	return []byte{b0, b1, uint8(c.PowerAdjust), c.BatteryLevel, 0x00, c.HoldOffWait}
}

// Encode builds a WLC_STAI payload: control byte then values in bit order
func (s *StatusSpec) Encode() []byte {
	out := []byte{0}
	add := func(bit uint8, v uint8) {
		out[0] |= bit
		out = append(out, v)
	}
	if s.BatteryLevel != nil {
		add(wlc.StatusBatteryLevel, *s.BatteryLevel)
	}
	if s.ReceivePower != nil {
		add(wlc.StatusReceivePower, *s.ReceivePower)
	}
	if s.ReceiveVoltage != nil {
		add(wlc.StatusReceiveVoltage, *s.ReceiveVoltage)
	}
	if s.BatteryTemperature != nil {
		add(wlc.StatusBatteryTemp, uint8(*s.BatteryTemperature))
	}
	if s.ListenerTemperature != nil {
		add(wlc.StatusListenerTemp, uint8(*s.ListenerTemperature))
	}
	return out
}

// Encode builds the 9-byte usi:wlc payload
func (v *VendorSpec) Encode() []byte {
	out := make([]byte, 9)
	for j := 1; j <= 6; j++ {
		out[j] = byte(v.DeviceID >> ((j - 1) * 8))
	}
	out[7] = byte(v.VendorID&0x0F)<<4 | byte(v.DeviceID>>48)&0x0F
	out[8] = byte(v.VendorID >> 4)
	return out
}
