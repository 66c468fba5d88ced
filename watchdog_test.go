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
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/go-wlc/internal/syncutil"
	"github.com/ZaparooProject/go-wlc/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTimeout = 5 * time.Second
	testTick    = 5 * time.Millisecond
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	return cfg.withDefaults()
}

func newTestWatchdog(t *testing.T, tr Transport) *watchdog {
	t.Helper()
	return newWatchdog(testConfig(), tr, NewStore(), trace.NewSession(nil), nil)
}

// snapshotLog collects telemetry notifications from the session goroutine
type snapshotLog struct {
	snaps []Snapshot
	mu    syncutil.Mutex
}

func (l *snapshotLog) add(s Snapshot) {
	l.mu.Lock()
	l.snaps = append(l.snaps, s)
	l.mu.Unlock()
}

func (l *snapshotLog) all() []Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Snapshot(nil), l.snaps...)
}

type watchdogHarness struct {
	w      *watchdog
	mock   *MockTransport
	mem    *trace.MemoryLogger
	snaps  *snapshotLog
	cancel context.CancelFunc
}

func startWatchdog(t *testing.T, mock *MockTransport, first []Record) *watchdogHarness {
	t.Helper()

	h := &watchdogHarness{
		mock:  mock,
		mem:   &trace.MemoryLogger{},
		snaps: &snapshotLog{},
	}
	h.w = newWatchdog(testConfig(), mock, NewStore(), trace.NewSession(h.mem), first)
	h.w.notify = h.snaps.add

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(func() {
		cancel()
		waitCtx, done := context.WithTimeout(context.Background(), testTimeout)
		defer done()
		_ = h.w.wait(waitCtx)
	})

	h.w.start(ctx)
	return h
}

func (h *watchdogHarness) waitEnded(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(t, h.w.wait(ctx), "session did not end")
	assert.True(t, h.w.isFinished())
}

func (h *watchdogHarness) sawState(state ConnectionState) bool {
	for _, s := range h.snaps.all() {
		if s.State == state {
			return true
		}
	}
	return false
}

func TestWatchdog_StaticWakeThenLost(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	h := startWatchdog(t, mock, capabilityRecords(capOpts{mode: ModeStatic, exp: 0}))

	require.Eventually(t, func() bool { return len(mock.PowerTransfers()) == 1 }, testTimeout, testTick)
	assert.Equal(t, 0, mock.GetCallCount(OpRead), "discovery message feeds the first step")
	assert.True(t, h.w.snapshotState().ChargingActive)

	h.w.wakeNow()
	h.waitEnded(t)

	assert.Equal(t, 1, mock.GetCallCount(OpRead))
	assert.Equal(t, 1, mock.GetCallCount(OpDisconnect), "lost path and teardown disconnect once")
	assert.Equal(t, []Mode{ModeOff}, mock.Modes())
	assert.False(t, mock.IsConnected())
	assert.True(t, h.sawState(ConnectedCharging))

	snaps := h.snaps.all()
	require.NotEmpty(t, snaps)
	assert.Equal(t, Disconnected, snaps[len(snaps)-1].State)
	assert.Equal(t, Unknown, snaps[len(snaps)-1].BatteryLevel)
	assert.Equal(t, ReadCapability, h.w.snapshotState().State)
}

func TestWatchdog_NegotiatedCycle(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.QueueRead(controlRecords(ctlOpts{seq: 1, wpt: true, exp: 0, level: 30})...)
	h := startWatchdog(t, mock, capabilityRecords(capOpts{mode: ModeNegotiated, exp: 0, readWait: 0x01}))

	require.Eventually(t, func() bool { return len(mock.PowerTransfers()) == 1 }, testTimeout, testTick)
	assert.Equal(t, PowerTransferCall{PowerAdjust: 0, DurationExp: 0}, mock.PowerTransfers()[0])

	writes := mock.Writes()
	require.Len(t, writes, 1)
	records, err := ParseMessage(writes[0])
	require.NoError(t, err)
	require.True(t, records[0].Is(RecordPowerInfo))
	info, err := DecodePowerInfo(records[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, uint8(100), info.Ptx)

	// Time completed goes back through HandleInfoReq to ReadControl, which
	// finds nothing and gives up after three retries
	h.w.transferStopped(StopTimeCompleted)
	h.waitEnded(t)

	assert.Equal(t, 5, mock.GetCallCount(OpRead))
	assert.Equal(t, int64(0), h.w.metrics().ReadErrors)

	var exhausted bool
	for _, ev := range h.mem.Filter(trace.KindError) {
		if ev.Detail == "read WLCL_CTL: "+ErrRetryExhausted.Error() {
			exhausted = true
		}
	}
	assert.True(t, exhausted, "retry exhaustion is traced")

	var battery bool
	for _, s := range h.snaps.all() {
		battery = battery || s.BatteryLevel == 30
	}
	assert.True(t, battery)

	events := h.mem.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, trace.KindSession, events[0].Kind)
	assert.Equal(t, trace.KindSession, events[len(events)-1].Kind)
}

func TestWatchdog_PresenceCheckLost(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.QueueRead(controlRecords(ctlOpts{seq: 1, exp: 0x13})...)
	h := startWatchdog(t, mock, capabilityRecords(capOpts{mode: ModeNegotiated, exp: 0, readWait: 0x01}))

	require.Eventually(t, func() bool {
		_, active := mock.PresenceCheck()
		return active
	}, testTimeout, testTick)
	interval, _ := mock.PresenceCheck()
	assert.Equal(t, DefaultPresenceCheckInterval, interval)
	assert.Equal(t, ReadRemovalDetection, h.w.snapshotState().State)

	require.True(t, mock.TriggerLost())
	h.waitEnded(t)

	_, active := mock.PresenceCheck()
	assert.False(t, active, "teardown stops the presence check")
	assert.Empty(t, mock.PowerTransfers())
}

func TestWatchdog_BatteryFull(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	h := startWatchdog(t, mock, capabilityRecords(capOpts{mode: ModeBatteryFull, exp: 7}))
	h.waitEnded(t)

	assert.True(t, h.w.full)
	assert.Len(t, h.mem.Filter(trace.KindSignal), 1)
	assert.Equal(t, "full", h.mem.Filter(trace.KindSignal)[0].Detail)

	var notified bool
	for _, s := range h.snaps.all() {
		if s.BatteryLevel == 100 && s.State == ConnectedNotCharging {
			notified = true
		}
	}
	assert.True(t, notified)
	assert.Equal(t, []Mode{ModeOff}, mock.Modes())
}

func TestWatchdog_RadioFailure(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetPowerTransferFails(true)
	h := startWatchdog(t, mock, capabilityRecords(capOpts{mode: ModeStatic, exp: 0}))
	h.waitEnded(t)

	assert.Equal(t, int64(1), h.w.metrics().RadioFailures)
	assert.Len(t, mock.PowerTransfers(), 1)
	assert.Equal(t, 1, mock.GetCallCount(OpRead), "falls back to capability discovery")

	var radio bool
	for _, ev := range h.mem.Filter(trace.KindError) {
		radio = radio || ev.Detail == "radio power transfer: "+ErrPowerTransfer.Error()
	}
	assert.True(t, radio)
}

func TestWatchdog_ReadErrorArmsErrorPresenceCheck(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.QueueReadError(ErrEmptyMessage)
	h := startWatchdog(t, mock, nil)
	h.waitEnded(t)

	assert.Equal(t, int64(1), h.w.metrics().ReadErrors)
	assert.Equal(t, 1, mock.GetCallCount(OpStartPresence))
	interval, _ := mock.PresenceCheck()
	assert.Equal(t, 125*time.Millisecond, interval)
}

func TestWatchdog_TransportReadErrorNoPresenceCheck(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.QueueReadError(errors.New("rf timeout"))
	h := startWatchdog(t, mock, nil)
	h.waitEnded(t)

	assert.Equal(t, int64(1), h.w.metrics().ReadErrors)
	assert.Zero(t, mock.GetCallCount(OpStartPresence))
}

func TestWatchdog_WriteErrorIsCounted(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetError(OpWrite, errors.New("nak"))
	h := startWatchdog(t, mock, capabilityRecords(capOpts{mode: ModeNegotiated, exp: 0, readWait: 0x01}))
	h.waitEnded(t)

	assert.Equal(t, int64(1), h.w.metrics().WriteErrors)
	assert.Empty(t, mock.Writes())
}

func TestWatchdog_PauseResume(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	w := newWatchdog((&Config{InitialDelay: 30 * time.Millisecond}).withDefaults(),
		mock, NewStore(), trace.NewSession(nil), capabilityRecords(capOpts{mode: ModeStatic, exp: 0}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.pause()
	w.pause()
	w.start(ctx)

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, w.metrics().Steps, "paused loop does not step")

	w.resume()
	require.Eventually(t, func() bool { return len(mock.PowerTransfers()) == 1 }, testTimeout, testTick)

	w.requestStop()
	waitCtx, done := context.WithTimeout(context.Background(), testTimeout)
	defer done()
	require.NoError(t, w.wait(waitCtx))
	assert.True(t, w.stopped)
}

func TestWatchdog_FullWhilePaused(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mem := &trace.MemoryLogger{}
	w := newWatchdog((&Config{InitialDelay: 30 * time.Millisecond}).withDefaults(),
		mock, NewStore(), trace.NewSession(mem), capabilityRecords(capOpts{mode: ModeStatic, exp: 0}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.pause()
	w.start(ctx)
	require.Eventually(t, func() bool {
		for _, e := range mem.Filter(trace.KindSignal) {
			if e.Detail == "pause" {
				return true
			}
		}
		return false
	}, testTimeout, testTick)

	w.raiseFull()
	waitCtx, done := context.WithTimeout(context.Background(), testTimeout)
	defer done()
	require.NoError(t, w.wait(waitCtx), "full must end a paused session")
	assert.True(t, w.full)
	assert.False(t, w.stopped)
	assert.Zero(t, w.metrics().Steps)
	assert.Empty(t, mock.PowerTransfers())
}

func TestWatchdog_ContextCancelStops(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	h := startWatchdog(t, mock, capabilityRecords(capOpts{mode: ModeStatic, exp: 0}))

	require.Eventually(t, func() bool { return len(mock.PowerTransfers()) == 1 }, testTimeout, testTick)
	h.cancel()
	h.waitEnded(t)
	assert.True(t, h.w.stopped)
	assert.Positive(t, h.w.metrics().Steps)
}

func TestWatchdog_TeardownOnce(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	w := newTestWatchdog(t, mock)

	var ended int
	w.ended = func(*watchdog) { ended++ }
	w.teardown()
	w.teardown()

	assert.Equal(t, 1, ended)
	assert.Equal(t, 1, mock.GetCallCount(OpDisconnect))
	assert.Equal(t, 1, mock.GetCallCount(OpEnable))
	assert.Equal(t, 1, mock.GetCallCount(OpStopPresence))
	assert.True(t, w.isFinished())
}

func TestWatchdog_TransferStoppedDoesNotBlock(t *testing.T) {
	t.Parallel()

	w := newTestWatchdog(t, NewMockTransport())
	done := make(chan struct{})
	go func() {
		for range 10 {
			w.transferStopped(StopTimeCompleted)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("transferStopped blocked on a full queue")
	}
	assert.Len(t, w.stops, cap(w.stops))
}

func TestWatchdog_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	w := newTestWatchdog(t, NewMockTransport())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSafeNotify_RecoversPanic(t *testing.T) {
	t.Parallel()

	err := safeNotify(func(Snapshot) { panic("boom") }, Snapshot{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	require.NoError(t, safeNotify(func(Snapshot) {}, Snapshot{}))
}

func TestSafeTimerStop(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { safeTimerStop(nil) })

	timer := time.NewTimer(time.Nanosecond)
	time.Sleep(time.Millisecond)
	safeTimerStop(timer)
	select {
	case <-timer.C:
		t.Fatal("channel was not drained")
	default:
	}
}
