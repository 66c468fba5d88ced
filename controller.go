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

	"github.com/ZaparooProject/go-wlc/internal/syncutil"
	"github.com/ZaparooProject/go-wlc/trace"
)

// Option configures a Controller
type Option func(*Controller)

// WithTelemetryListener is called from the session goroutine whenever the
// telemetry store has something worth reporting. It must not block and
// must not call Stop.
func WithTelemetryListener(fn func(Snapshot)) Option {
	return func(c *Controller) {
		c.onTelemetry = fn
	}
}

// WithSessionEnded is called once after a session has torn down
func WithSessionEnded(fn func()) Option {
	return func(c *Controller) {
		c.onEnded = fn
	}
}

// WithTracer records every session to logger
func WithTracer(logger trace.Logger) Option {
	return func(c *Controller) {
		c.tracer = logger
	}
}

// Controller owns the charging sessions started on discovered listeners.
// At most one session runs at a time.
type Controller struct {
	tracer      trace.Logger
	onTelemetry func(Snapshot)
	onEnded     func()
	store       *Store
	active      *watchdog
	pending     []Record
	last        SessionMetrics
	cfg         Config
	mu          syncutil.Mutex
}

// NewController creates a controller. A nil cfg uses DefaultConfig.
func NewController(cfg *Config, opts ...Option) *Controller {
	c := &Controller{
		cfg:    cfg.withDefaults(),
		store:  NewStore(),
		tracer: trace.NoopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckCapability validates an NDEF message read at discovery as a WLC
// capability message. A valid message is kept for the first
// ReadCapability step of the next session and its status and vendor
// records update telemetry. While a session is running the message is
// still validated and its telemetry applied, but it is not kept, so the
// next session reads WLC_CAP from its own transport.
func (c *Controller) CheckCapability(raw []byte) bool {
	records, err := ParseMessage(raw)
	if err != nil {
		Debugf("WLC: discovery message rejected: %v", err)
		return false
	}
	msg, err := ParseCapabilityMessage(records)
	if err != nil {
		Debugf("WLC: not a WLC listener: %v", err)
		return false
	}

	Debugf("WLC: capability mode=%s retries=%d cap_wait=%v read_wait=%v write_to=%v",
		msg.Capability.Mode, msg.Capability.MaxRetries, msg.Capability.CapWait,
		msg.Capability.NdefReadWait, msg.Capability.NdefWriteTimeout)

	if msg.Status != nil {
		c.store.ApplyStatus(*msg.Status)
	}
	if msg.Vendor != nil {
		Debugf("WLC: %s", msg.Vendor)
		c.store.Update(MetricVendorID, int(msg.Vendor.VendorID))
	}

	c.mu.Lock()
	if c.active != nil && !c.active.isFinished() {
		Debugf("WLC: capability not kept: %v", ErrSessionActive)
	} else {
		c.pending = records
	}
	c.mu.Unlock()

	if snap, ok := c.store.DrainIfDirty(); ok && c.onTelemetry != nil {
		if err := safeNotify(c.onTelemetry, snap); err != nil {
			Debugf("WLC: %v", err)
		}
	}
	return true
}

// Start begins a charging session on t. It is a no-op returning true when
// a session is already running, and returns false when the radio refuses
// to enter WLC mode.
func (c *Controller) Start(ctx context.Context, t Transport) bool {
	if t == nil {
		Debugf("WLC: %v", ErrNoTransport)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && !c.active.isFinished() {
		Debugf("WLC: %v", ErrSessionActive)
		return true
	}

	if !t.EnableWirelessCharging(ModeNonAutonomous) {
		Debugf("WLC: %v", &RadioError{Op: "enable", Err: ErrRadioEnable})
		return false
	}

	session := trace.NewSession(c.tracer)
	w := newWatchdog(c.cfg, t, c.store, session, c.pending)
	w.notify = c.onTelemetry
	w.ended = c.sessionEnded
	c.pending = nil
	c.active = w

	Debugf("WLC: session %s started", session.ID())
	w.start(ctx)
	return true
}

// Stop terminates the running session and waits for its teardown
func (c *Controller) Stop(ctx context.Context) error {
	w := c.current()
	if w == nil {
		return nil
	}
	w.requestStop()
	if err := w.wait(ctx); err != nil {
		return err
	}
	w.wg.Wait()
	return nil
}

// OnTransferStopped forwards the radio's power transfer end notification
func (c *Controller) OnTransferStopped(reason StopReason) {
	w := c.current()
	if w == nil {
		Debugf("WLC: transfer stopped (%s): %v", reason, ErrSessionInactive)
		return
	}
	Debugf("WLC: transfer stopped: %s", reason)
	w.transferStopped(reason)
}

// OnTransferStoppedCode is OnTransferStopped for the raw end condition byte
func (c *Controller) OnTransferStoppedCode(code byte) {
	c.OnTransferStopped(StopReasonFromCode(code))
}

// Pause holds the session loop before its next step
func (c *Controller) Pause() {
	if w := c.current(); w != nil {
		w.pause()
	}
}

// Resume releases a paused loop. The pending wait restarts in full.
func (c *Controller) Resume() {
	if w := c.current(); w != nil {
		w.resume()
	}
}

// WakeNow cuts the current wait short
func (c *Controller) WakeNow() {
	if w := c.current(); w != nil {
		w.wakeNow()
	}
}

// ForceFull ends the session as if the listener had reported a full battery
func (c *Controller) ForceFull() {
	if w := c.current(); w != nil {
		w.raiseFull()
	}
}

// IsActive reports whether a session loop is running
func (c *Controller) IsActive() bool {
	return c.current() != nil
}

// Snapshot returns the current telemetry without draining it
func (c *Controller) Snapshot() Snapshot {
	return c.store.Snapshot()
}

// State returns the protocol state of the running session, or the
// initial state when none runs
func (c *Controller) State() SessionState {
	if w := c.current(); w != nil {
		return w.snapshotState()
	}
	return NewSessionState(false, c.cfg.PresenceCheckInterval)
}

// Metrics returns the counters of the running session, or of the last
// one once it has ended
func (c *Controller) Metrics() SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return c.active.metrics()
	}
	return c.last
}

func (c *Controller) current() *watchdog {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.isFinished() {
		return nil
	}
	return c.active
}

// sessionEnded runs on the session goroutine at the end of teardown
func (c *Controller) sessionEnded(w *watchdog) {
	c.mu.Lock()
	if c.active == w {
		c.last = w.metrics()
		c.active = nil
	}
	c.mu.Unlock()

	if c.onEnded == nil {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				Debugf("WLC: session ended callback panicked: %v", r)
			}
		}()
		c.onEnded()
	}()
}
