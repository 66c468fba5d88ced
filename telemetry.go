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

	"github.com/ZaparooProject/go-wlc/internal/syncutil"
)

// Unknown marks a metric that has not been reported since the last reset
const Unknown = -1

// batteryNotifyDelta is the battery increase needed before listeners hear about it
const batteryNotifyDelta = 5

// Metric names one value held by the telemetry store
type Metric int

const (
	MetricBatteryLevel Metric = iota
	MetricReceivePower
	MetricReceiveVoltage
	MetricReceiveCurrent
	MetricBatteryTemperature
	MetricListenerTemperature
	MetricVendorID
	metricCount
)

var metricNames = [...]string{
	MetricBatteryLevel:        "battery_level",
	MetricReceivePower:        "receive_power",
	MetricReceiveVoltage:      "receive_voltage",
	MetricReceiveCurrent:      "receive_current",
	MetricBatteryTemperature:  "battery_temperature",
	MetricListenerTemperature: "listener_temperature",
	MetricVendorID:            "vendor_id",
}

func (m Metric) String() string {
	if m >= 0 && m < metricCount {
		return metricNames[m]
	}
	return fmt.Sprintf("metric(%d)", int(m))
}

// ConnectionState is the listener state surfaced to the session owner
type ConnectionState int

const (
	StateUnknown ConnectionState = iota - 1
	Disconnected
	ConnectedNotCharging
	ConnectedCharging
)

func (c ConnectionState) String() string {
	switch c {
	case Disconnected:
		return "disconnected"
	case ConnectedNotCharging:
		return "connected, not charging"
	case ConnectedCharging:
		return "connected, charging"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the telemetry store
type Snapshot struct {
	BatteryLevel        int
	ReceivePower        int
	ReceiveVoltage      int
	ReceiveCurrent      int
	BatteryTemperature  int
	ListenerTemperature int
	VendorID            int
	State               ConnectionState
}

// Store holds last-known listener metrics and decides when a change is
// worth notifying: a battery rise of more than 5 over the last notified
// level, or any connection state change.
type Store struct {
	values       [metricCount]int
	lastNotified int
	state        ConnectionState
	mu           syncutil.Mutex
	dirty        bool
	batteryDirty bool
}

// NewStore returns a store with every metric unknown
func NewStore() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Update stores value for metric
func (s *Store) Update(metric Metric, value int) {
	if metric < 0 || metric >= metricCount {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[metric] = value
	if metric == MetricBatteryLevel && value > s.lastNotified+batteryNotifyDelta {
		s.dirty = true
		s.batteryDirty = true
	}
}

// SetState stores the connection state, marking the store dirty on change
func (s *Store) SetState(state ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == state {
		return
	}
	s.state = state
	s.dirty = true
}

// MarkBatteryNotified records level as already reported
func (s *Store) MarkBatteryNotified(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastNotified = level
	s.batteryDirty = false
}

// DrainIfDirty returns a snapshot and clears the dirty flag when a
// notification is due
func (s *Store) DrainIfDirty() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return Snapshot{}, false
	}
	if s.batteryDirty {
		s.lastNotified = s.values[MetricBatteryLevel]
		s.batteryDirty = false
	}
	s.dirty = false
	return s.snapshotLocked(), true
}

// Snapshot returns the current values without draining
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Reset restores every metric to Unknown and forgets the last notification
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.values {
		s.values[i] = Unknown
	}
	s.lastNotified = Unknown
	s.state = StateUnknown
	s.dirty = false
	s.batteryDirty = false
}

// Apply folds state machine reports into the store in order
func (s *Store) Apply(reports ...Report) {
	for _, r := range reports {
		switch r.Kind {
		case ReportMetric:
			s.Update(r.Metric, r.Value)
		case ReportState:
			s.SetState(r.State)
		case ReportBatteryNotified:
			s.MarkBatteryNotified(r.Value)
		default:
		}
	}
}

// ApplyStatus copies the metrics present in st
func (s *Store) ApplyStatus(st Status) {
	s.Apply(statusReports(st)...)
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		BatteryLevel:        s.values[MetricBatteryLevel],
		ReceivePower:        s.values[MetricReceivePower],
		ReceiveVoltage:      s.values[MetricReceiveVoltage],
		ReceiveCurrent:      s.values[MetricReceiveCurrent],
		BatteryTemperature:  s.values[MetricBatteryTemperature],
		ListenerTemperature: s.values[MetricListenerTemperature],
		VendorID:            s.values[MetricVendorID],
		State:               s.state,
	}
}
