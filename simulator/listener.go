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

// Package simulator provides a scripted WLC listener backed by
// wlc.MockTransport, for tests and the wlcsim tool.
package simulator

import (
	"context"
	"math/rand/v2"
	"time"

	wlc "github.com/ZaparooProject/go-wlc"
	"github.com/ZaparooProject/go-wlc/internal/syncutil"
)

// Status is a point-in-time view of the listener
type Status struct {
	PowerInfos []wlc.PowerInfo // WLCP_INFO records written by the poller
	Step       int             // index of the next step served
	Served     int             // reads served so far
	Acks       int             // empty confirmation messages received
	Transfers  int             // power transfers started
	Charging   bool            // a transfer is running
	Removed    bool
}

// Listener plays a Scenario against a poller. Reads walk the steps in
// order; once they run out the listener behaves as removed.
type Listener struct {
	scenario  *Scenario
	transport *wlc.MockTransport
	rng       *rand.Rand
	onStopped func(wlc.StopReason)
	timer     *time.Timer
	messages  [][]byte
	infos     []wlc.PowerInfo
	reason    wlc.StopReason
	pos       int
	repeat    int
	served    int
	acks      int
	transfers int
	mu        syncutil.Mutex
	removed   bool
}

// New builds a listener and the transport a controller drives it through
func New(s *Scenario) (*Listener, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	reason, err := s.stopReason()
	if err != nil {
		return nil, err
	}

	messages := make([][]byte, len(s.Steps))
	for i := range s.Steps {
		// Validate already proved every step encodes
		messages[i], _ = s.Steps[i].Message()
	}

	seed := s.Jitter.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	l := &Listener{
		scenario:  s,
		transport: wlc.NewMockTransport(),
		rng:       rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)), //nolint:gosec // simulation, not crypto
		messages:  messages,
		reason:    reason,
	}
	l.transport.SetMultiTag(s.MultiTag)
	l.transport.SetEnableFails(s.RejectEnable)
	l.transport.SetPowerTransferFails(s.RejectTransfer)
	l.transport.SetReadFunc(l.read)
	l.transport.SetOnWrite(l.written)
	l.transport.SetOnPowerTransfer(l.transferStarted)
	return l, nil
}

// Transport returns the radio the poller talks to
func (l *Listener) Transport() *wlc.MockTransport {
	return l.transport
}

// Discovery returns the NDEF message read when the listener entered the
// field, and consumes it as the first read
func (l *Listener) Discovery() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := l.messages[0]
	l.advance()
	return msg
}

// OnTransferStopped sets the radio notification fired when a transfer ends
func (l *Listener) OnTransferStopped(fn func(wlc.StopReason)) {
	l.mu.Lock()
	l.onStopped = fn
	l.mu.Unlock()
}

// Remove takes the listener out of the field. A running transfer ends
// with a FOD or removal condition.
func (l *Listener) Remove() {
	l.mu.Lock()
	l.removed = true
	l.mu.Unlock()

	l.endTransfer(wlc.StopFodOrRemoval)
	l.transport.TriggerLost()
}

// FOD ends the running transfer as if a foreign object had been detected
func (l *Listener) FOD() bool {
	return l.endTransfer(wlc.StopFodOrRemoval)
}

// Status reports what the listener has seen so far
func (l *Listener) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		Step:       l.pos,
		Served:     l.served,
		Acks:       l.acks,
		Transfers:  l.transfers,
		Charging:   l.timer != nil,
		Removed:    l.removed,
		PowerInfos: append([]wlc.PowerInfo(nil), l.infos...),
	}
}

// Close cancels a pending transfer notification
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// advance moves past one serving of the current step. Caller holds mu.
func (l *Listener) advance() {
	l.served++
	if l.repeat < l.scenario.Steps[l.pos].Repeat {
		l.repeat++
		return
	}
	l.repeat = 0
	l.pos++
}

func (l *Listener) read(ctx context.Context) ([]wlc.Record, error) {
	if err := l.jitter(ctx); err != nil {
		return nil, err
	}

	l.mu.Lock()
	if l.removed {
		l.mu.Unlock()
		return nil, nil
	}
	if l.pos >= len(l.scenario.Steps) {
		l.mu.Unlock()
		wlc.Debugln("SIM: script exhausted, leaving the field")
		l.Remove()
		return nil, nil
	}
	step := l.scenario.Steps[l.pos]
	msg := l.messages[l.pos]
	l.advance()
	l.mu.Unlock()

	switch {
	case step.Remove:
		wlc.Debugln("SIM: listener removed")
		l.Remove()
		return nil, nil
	case step.NoData:
		return nil, nil
	default:
		return wlc.ParseMessage(msg)
	}
}

func (l *Listener) jitter(ctx context.Context) error {
	if l.scenario.Jitter.MaxLatency <= 0 {
		return nil
	}
	l.mu.Lock()
	delay := time.Duration(l.rng.Int64N(int64(l.scenario.Jitter.MaxLatency) + 1))
	l.mu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// written inspects every message the poller writes
func (l *Listener) written(raw []byte) {
	records, err := wlc.ParseMessage(raw)
	if err != nil {
		wlc.Debugf("SIM: unreadable write: %v", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range records {
		if rec.Is(wlc.RecordPowerInfo) {
			info, err := wlc.DecodePowerInfo(rec.Payload)
			if err != nil {
				wlc.Debugf("SIM: bad WLCP_INFO: %v", err)
				continue
			}
			l.infos = append(l.infos, info)
			return
		}
	}
	l.acks++
}

// transferStarted schedules the end of a power transfer
func (l *Listener) transferStarted(call wlc.PowerTransferCall) {
	d := time.Duration(uint64(1)<<(call.DurationExp+3)) * time.Millisecond
	d = max(time.Duration(float64(d)*l.scenario.timeScale()), time.Millisecond)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.transfers++
	if l.timer != nil {
		l.timer.Stop()
	}
	wlc.Debugf("SIM: transfer adjust=%d for %v", call.PowerAdjust, d)
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		l.mu.Lock()
		current := l.timer == timer
		l.mu.Unlock()
		if current {
			l.endTransfer(l.reason)
		}
	})
	l.timer = timer
}

// endTransfer fires the stop notification for a running transfer
func (l *Listener) endTransfer(reason wlc.StopReason) bool {
	l.mu.Lock()
	if l.timer == nil {
		l.mu.Unlock()
		return false
	}
	l.timer.Stop()
	l.timer = nil
	fn := l.onStopped
	l.mu.Unlock()

	if fn != nil {
		fn(reason)
	}
	return true
}
