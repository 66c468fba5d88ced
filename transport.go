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
	"context"
	"time"

	"github.com/ZaparooProject/go-wlc/internal/syncutil"
)

// Mode is the charging mode passed to EnableWirelessCharging
type Mode int

const (
	// ModeNonAutonomous lets the host drive the WLC state machine
	ModeNonAutonomous Mode = 0
	// ModeOff disables the charging RF field
	ModeOff Mode = 1
)

// Transport is the radio driver a charging session runs on. It reads and
// writes NDEF data exchange records with the listener and controls the
// charging field.
type Transport interface {
	// ReadRecords reads the listener's current NDEF message. A nil slice
	// with a nil error means no message was available.
	ReadRecords(ctx context.Context) ([]Record, error)

	// WritePayload writes a raw NDEF message to the listener
	WritePayload(ctx context.Context, payload []byte) error

	// StartPresenceCheck polls the listener every interval and calls onLost
	// once it stops answering
	StartPresenceCheck(interval time.Duration, onLost func())

	// StopPresenceCheck cancels a running presence check
	StopPresenceCheck()

	// Disconnect releases the listener
	Disconnect() error

	// IsMultiTagRadio reports whether several tags may share the field,
	// which forces static mode
	IsMultiTagRadio() bool

	// EnableWirelessCharging switches the radio's WLC mode
	EnableWirelessCharging(mode Mode) bool

	// RequestPowerTransfer starts a timed power transfer. durationExp is the
	// clamped WLC duration exponent.
	RequestPowerTransfer(powerAdjust int8, durationExp uint8) bool
}

// Transport operations counted by MockTransport
const (
	OpRead          = "read"
	OpWrite         = "write"
	OpStartPresence = "start_presence"
	OpStopPresence  = "stop_presence"
	OpDisconnect    = "disconnect"
	OpEnable        = "enable"
	OpPowerTransfer = "power_transfer"
)

type scriptedRead struct {
	err     error
	records []Record
}

// PowerTransferCall is one RequestPowerTransfer seen by MockTransport
type PowerTransferCall struct {
	PowerAdjust int8
	DurationExp uint8
}

// MockTransport is a scriptable Transport for tests and the simulator
type MockTransport struct {
	readFunc        func(ctx context.Context) ([]Record, error)
	onPowerTransfer func(PowerTransferCall)
	onWrite         func([]byte)
	onLost          func()
	callCount       map[string]int
	errorMap        map[string]error
	reads           []scriptedRead
	writes          [][]byte
	modes           []Mode
	transfers       []PowerTransferCall
	presence        time.Duration
	delay           time.Duration
	mu              syncutil.RWMutex
	multiTag        bool
	enableFails     bool
	transferFails   bool
	connected       bool
	presenceActive  bool
}

// NewMockTransport creates a connected mock with an empty read script
func NewMockTransport() *MockTransport {
	return &MockTransport{
		connected: true,
		callCount: make(map[string]int),
		errorMap:  make(map[string]error),
	}
}

// ReadRecords implements Transport. Scripted reads are served in order;
// once the script runs out the read func (if any) answers, otherwise no data.
func (m *MockTransport) ReadRecords(ctx context.Context) ([]Record, error) {
	if err := m.simulateDelay(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.callCount[OpRead]++
	if err, ok := m.errorMap[OpRead]; ok {
		m.mu.Unlock()
		return nil, err
	}
	if len(m.reads) > 0 {
		next := m.reads[0]
		m.reads = m.reads[1:]
		m.mu.Unlock()
		return next.records, next.err
	}
	fn := m.readFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return nil, nil
}

// WritePayload implements Transport
func (m *MockTransport) WritePayload(ctx context.Context, payload []byte) error {
	if err := m.simulateDelay(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.callCount[OpWrite]++
	if err, ok := m.errorMap[OpWrite]; ok {
		m.mu.Unlock()
		return err
	}
	data := append([]byte(nil), payload...)
	m.writes = append(m.writes, data)
	hook := m.onWrite
	m.mu.Unlock()

	if hook != nil {
		hook(data)
	}
	return nil
}

// StartPresenceCheck implements Transport
func (m *MockTransport) StartPresenceCheck(interval time.Duration, onLost func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount[OpStartPresence]++
	m.presence = interval
	m.onLost = onLost
	m.presenceActive = true
}

// StopPresenceCheck implements Transport
func (m *MockTransport) StopPresenceCheck() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount[OpStopPresence]++
	m.presenceActive = false
	m.onLost = nil
}

// Disconnect implements Transport
func (m *MockTransport) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount[OpDisconnect]++
	m.connected = false
	if err, ok := m.errorMap[OpDisconnect]; ok {
		return err
	}
	return nil
}

// IsMultiTagRadio implements Transport
func (m *MockTransport) IsMultiTagRadio() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.multiTag
}

// EnableWirelessCharging implements Transport
func (m *MockTransport) EnableWirelessCharging(mode Mode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount[OpEnable]++
	m.modes = append(m.modes, mode)
	return !(m.enableFails && mode == ModeNonAutonomous)
}

// RequestPowerTransfer implements Transport
func (m *MockTransport) RequestPowerTransfer(powerAdjust int8, durationExp uint8) bool {
	call := PowerTransferCall{PowerAdjust: powerAdjust, DurationExp: durationExp}

	m.mu.Lock()
	m.callCount[OpPowerTransfer]++
	m.transfers = append(m.transfers, call)
	fails := m.transferFails
	hook := m.onPowerTransfer
	m.mu.Unlock()

	if fails {
		return false
	}
	if hook != nil {
		hook(call)
	}
	return true
}

func (m *MockTransport) simulateDelay(ctx context.Context) error {
	m.mu.RLock()
	delay := m.delay
	m.mu.RUnlock()

	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer safeTimerStop(timer)
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Test helper methods

// QueueRead appends a successful read returning records
func (m *MockTransport) QueueRead(records ...Record) {
	m.mu.Lock()
	m.reads = append(m.reads, scriptedRead{records: records})
	m.mu.Unlock()
}

// QueueNoData appends a read that returns nothing
func (m *MockTransport) QueueNoData() {
	m.mu.Lock()
	m.reads = append(m.reads, scriptedRead{})
	m.mu.Unlock()
}

// QueueReadError appends a failing read
func (m *MockTransport) QueueReadError(err error) {
	m.mu.Lock()
	m.reads = append(m.reads, scriptedRead{err: err})
	m.mu.Unlock()
}

// SetReadFunc answers reads once the script is exhausted
func (m *MockTransport) SetReadFunc(fn func(ctx context.Context) ([]Record, error)) {
	m.mu.Lock()
	m.readFunc = fn
	m.mu.Unlock()
}

// SetOnPowerTransfer is called after every accepted RequestPowerTransfer
func (m *MockTransport) SetOnPowerTransfer(fn func(PowerTransferCall)) {
	m.mu.Lock()
	m.onPowerTransfer = fn
	m.mu.Unlock()
}

// SetOnWrite is called with every payload WritePayload accepts
func (m *MockTransport) SetOnWrite(fn func([]byte)) {
	m.mu.Lock()
	m.onWrite = fn
	m.mu.Unlock()
}

// SetError injects err for one of the Op* operations
func (m *MockTransport) SetError(op string, err error) {
	m.mu.Lock()
	m.errorMap[op] = err
	m.mu.Unlock()
}

// ClearError removes error injection for op
func (m *MockTransport) ClearError(op string) {
	m.mu.Lock()
	delete(m.errorMap, op)
	m.mu.Unlock()
}

// SetDelay simulates radio latency on reads and writes
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// SetMultiTag sets the IsMultiTagRadio answer
func (m *MockTransport) SetMultiTag(multiTag bool) {
	m.mu.Lock()
	m.multiTag = multiTag
	m.mu.Unlock()
}

// SetEnableFails makes EnableWirelessCharging(ModeNonAutonomous) fail
func (m *MockTransport) SetEnableFails(fails bool) {
	m.mu.Lock()
	m.enableFails = fails
	m.mu.Unlock()
}

// SetPowerTransferFails makes RequestPowerTransfer fail
func (m *MockTransport) SetPowerTransferFails(fails bool) {
	m.mu.Lock()
	m.transferFails = fails
	m.mu.Unlock()
}

// TriggerLost fires the presence check callback, if one is armed
func (m *MockTransport) TriggerLost() bool {
	m.mu.Lock()
	fn := m.onLost
	m.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// GetCallCount returns how many times op was called
func (m *MockTransport) GetCallCount(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount[op]
}

// Writes returns a copy of every payload written
func (m *MockTransport) Writes() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([][]byte(nil), m.writes...)
}

// Modes returns every mode passed to EnableWirelessCharging
func (m *MockTransport) Modes() []Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Mode(nil), m.modes...)
}

// PowerTransfers returns every RequestPowerTransfer call
func (m *MockTransport) PowerTransfers() []PowerTransferCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]PowerTransferCall(nil), m.transfers...)
}

// PresenceCheck returns the armed interval and whether a check is running
func (m *MockTransport) PresenceCheck() (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.presence, m.presenceActive
}

// IsConnected reports whether Disconnect has not been called yet
func (m *MockTransport) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Reset clears call counts and scripts and reconnects the mock
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount = make(map[string]int)
	m.errorMap = make(map[string]error)
	m.reads = nil
	m.writes = nil
	m.modes = nil
	m.transfers = nil
	m.onLost = nil
	m.presenceActive = false
	m.connected = true
}
