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
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-wlc/internal/syncutil"
	"github.com/ZaparooProject/go-wlc/trace"
)

// spinBreak is slept after MaxContinue back-to-back immediate steps
const spinBreak = time.Millisecond

// SessionMetrics tracks operational counters of one charging session
type SessionMetrics struct {
	Steps           int64         // Total state machine steps
	ReadErrors      int64         // Transport read failures
	WriteErrors     int64         // Transport write failures
	RadioFailures   int64         // Rejected power transfer requests
	LastStepLatency time.Duration // Duration of the last step including I/O
}

// watchdog runs one charging session. Only its goroutine touches state.
type watchdog struct {
	transport Transport
	store     *Store
	tracer    *trace.Session
	notify    func(Snapshot)
	ended     func(*watchdog)

	wake      chan struct{}
	lostCh    chan struct{}
	fullCh    chan struct{}
	terminate chan struct{}
	pauseCh   chan struct{}
	resumeCh  chan struct{}
	stops     chan StopReason
	done      chan struct{}

	first []Record // capability message fed at discovery
	cfg   Config
	state SessionState
	view  SessionState
	viewM syncutil.RWMutex
	wg    sync.WaitGroup
	once  sync.Once

	steps         atomic.Int64
	readErrors    atomic.Int64
	writeErrors   atomic.Int64
	radioFailures atomic.Int64
	lastLatency   atomic.Int64

	paused       atomic.Bool
	finished     atomic.Bool
	present      bool
	stopped      bool
	full         bool
	disconnected bool
}

func newWatchdog(cfg Config, t Transport, store *Store, tracer *trace.Session, first []Record) *watchdog {
	w := &watchdog{
		cfg:       cfg,
		transport: t,
		store:     store,
		tracer:    tracer,
		first:     first,
		wake:      make(chan struct{}, 1),
		lostCh:    make(chan struct{}, 1),
		fullCh:    make(chan struct{}, 1),
		terminate: make(chan struct{}, 1),
		pauseCh:   make(chan struct{}, 1),
		resumeCh:  make(chan struct{}, 1),
		stops:     make(chan StopReason, 4),
		done:      make(chan struct{}),
		present:   true,
	}
	w.state = NewSessionState(t.IsMultiTagRadio(), cfg.PresenceCheckInterval)
	w.view = w.state
	return w
}

func (w *watchdog) start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// signal does a non-blocking send on a one-slot channel
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (w *watchdog) wakeNow() {
	signal(w.wake)
}

// raiseLost is handed to the transport as the presence check callback
func (w *watchdog) raiseLost() {
	signal(w.lostCh)
}

func (w *watchdog) raiseFull() {
	signal(w.fullCh)
}

func (w *watchdog) requestStop() {
	signal(w.terminate)
}

func (w *watchdog) isFinished() bool {
	return w.finished.Load()
}

func (w *watchdog) pause() {
	if w.paused.CompareAndSwap(false, true) {
		signal(w.pauseCh)
	}
}

func (w *watchdog) resume() {
	if w.paused.CompareAndSwap(true, false) {
		signal(w.resumeCh)
	}
}

// transferStopped queues the radio's stop notification for the loop
func (w *watchdog) transferStopped(reason StopReason) {
	select {
	case w.stops <- reason:
	default:
		Debugf("WLC: dropping transfer stop (%s), queue full", reason)
	}
}

// wait blocks until the loop has torn down or ctx expires
func (w *watchdog) wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for charging session to end: %w", ctx.Err())
	}
}

func (w *watchdog) snapshotState() SessionState {
	w.viewM.RLock()
	defer w.viewM.RUnlock()
	return w.view
}

func (w *watchdog) metrics() SessionMetrics {
	return SessionMetrics{
		Steps:           w.steps.Load(),
		ReadErrors:      w.readErrors.Load(),
		WriteErrors:     w.writeErrors.Load(),
		RadioFailures:   w.radioFailures.Load(),
		LastStepLatency: time.Duration(w.lastLatency.Load()),
	}
}

func (w *watchdog) run(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.done)

	Debugln("WLC: starting charging flow")
	w.tracer.Lifecycle("session started")

	next := WaitFor(w.cfg.InitialDelay)
	continues := 0

	for w.running() {
		var ev *Event
		var ok bool

		switch {
		case !next.Immediate():
			continues = 0
			ev, ok = w.sleep(ctx, next.Duration())
		case continues >= w.cfg.MaxContinue:
			continues = 0
			ev, ok = w.sleep(ctx, spinBreak)
		default:
			continues++
			runtime.Gosched()
			ev, ok = w.poll(ctx)
		}
		if !ok {
			break
		}

		start := time.Now()
		next = w.step(ctx, ev)
		w.steps.Add(1)
		w.lastLatency.Store(int64(time.Since(start)))
	}

	w.teardown()
}

// running drains pending exit signals and reports whether the loop goes on
func (w *watchdog) running() bool {
	for {
		select {
		case <-w.lostCh:
			w.present = false
		case <-w.fullCh:
			w.full = true
		case <-w.terminate:
			w.stopped = true
		default:
			return w.present && !w.stopped && !w.full
		}
	}
}

// sleep waits d or until a signal arrives. It returns an external stop
// event when one interrupted the wait, and false when the loop must exit.
func (w *watchdog) sleep(ctx context.Context, d time.Duration) (*Event, bool) {
	timer := time.NewTimer(d)
	defer safeTimerStop(timer)

	for {
		select {
		case <-timer.C:
			return nil, true
		case <-w.wake:
			return nil, true
		case reason := <-w.stops:
			ev := ExternalStop(reason)
			return &ev, true
		case <-w.pauseCh:
			if !w.waitResume(ctx) {
				return nil, false
			}
			// Resume never steps straight away; a full interval runs first
			safeTimerStop(timer)
			timer.Reset(d)
		case <-w.lostCh:
			w.present = false
			return nil, false
		case <-w.fullCh:
			w.full = true
			return nil, false
		case <-w.terminate:
			w.stopped = true
			return nil, false
		case <-ctx.Done():
			w.stopped = true
			return nil, false
		}
	}
}

// poll checks for signals without blocking
func (w *watchdog) poll(ctx context.Context) (*Event, bool) {
	select {
	case reason := <-w.stops:
		ev := ExternalStop(reason)
		return &ev, true
	case <-w.pauseCh:
		if !w.waitResume(ctx) {
			return nil, false
		}
		return w.sleep(ctx, max(w.cfg.InitialDelay, spinBreak))
	case <-ctx.Done():
		w.stopped = true
		return nil, false
	default:
		return nil, w.running()
	}
}

func (w *watchdog) waitResume(ctx context.Context) bool {
	Debugln("WLC: watchdog paused")
	w.tracer.Signal("pause")
	for {
		select {
		case <-w.resumeCh:
			Debugln("WLC: watchdog resumed")
			w.tracer.Signal("resume")
			return true
		case <-w.lostCh:
			w.present = false
			return false
		case <-w.fullCh:
			w.full = true
			return false
		case <-w.terminate:
			w.stopped = true
			return false
		case <-ctx.Done():
			w.stopped = true
			return false
		}
	}
}

// step runs the state machine once and performs the resulting action
func (w *watchdog) step(ctx context.Context, ev *Event) Wait {
	var input Event
	if ev != nil {
		input = *ev
	} else {
		input = w.readEvent(ctx)
	}

	from := w.state.State
	res := w.apply(input, Step(w.state, input))
	if ok := w.execute(ctx, res.Action); !ok {
		res = w.apply(RadioFailure(), Step(w.state, RadioFailure()))
	}

	switch res.Signal {
	case SignalLost:
		if from == ReadControl || from == NegotiationWait {
			Debugf("WLC: %s: %v", from, ErrRetryExhausted)
			w.tracer.Error(fmt.Errorf("%s: %w", from, ErrRetryExhausted))
		}
		Debugf("WLC: listener lost after %s", input.Kind)
		w.tracer.Signal(SignalLost.String())
		w.present = false
	case SignalFull:
		Debugln("WLC: battery full")
		w.tracer.Signal(SignalFull.String())
		w.full = true
	default:
	}

	w.flushTelemetry()
	return res.Wait
}

func (w *watchdog) apply(ev Event, res Result) Result {
	from := w.state.State
	w.state = res.State

	w.viewM.Lock()
	w.view = w.state
	w.viewM.Unlock()

	Debugf("WLC: %s --%s--> %s, wait %s", from, ev.Kind, res.State.State, res.Wait)
	w.tracer.State(from.String(), res.State.State.String(), res.Wait.String())
	w.store.Apply(res.Reports...)
	return res
}

// readEvent converts a transport read into a state machine event
func (w *watchdog) readEvent(ctx context.Context) Event {
	kind := w.state.State.ReadsRecord()
	if kind == RecordUnknown {
		return Tick()
	}

	var records []Record
	if kind == RecordCapability && w.state.FirstCapabilityRead && len(w.first) > 0 {
		records, w.first = w.first, nil
	} else {
		var err error
		records, err = w.read(ctx)
		if err != nil {
			w.readErrors.Add(1)
			Debugf("WLC: %v", err)
			w.tracer.Error(err)
			if IsFormatError(err) || errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrNoRecords) {
				w.transport.StartPresenceCheck(w.cfg.ErrorPresenceCheckInterval, w.raiseLost)
			}
			return NoData()
		}
	}

	if len(records) == 0 {
		return NoData()
	}
	for _, rec := range records {
		w.tracer.Record(trace.DirectionIn, string(rec.Type), rec.Payload)
	}
	if kind == RecordCapability {
		return CapabilityReceived(records)
	}
	return ControlReceived(records)
}

func (w *watchdog) read(ctx context.Context) ([]Record, error) {
	ioCtx, cancel := context.WithTimeout(ctx, w.cfg.IOTimeout)
	defer cancel()

	records, err := w.transport.ReadRecords(ioCtx)
	if err != nil {
		return nil, &TransportError{
			Op:        "read " + w.state.State.ReadsRecord().String(),
			Err:       errors.Join(ErrTransportRead, err),
			Retryable: true,
		}
	}
	return records, nil
}

func (w *watchdog) write(ctx context.Context, name string, payload, message []byte) {
	ioCtx, cancel := context.WithTimeout(ctx, w.cfg.IOTimeout)
	defer cancel()

	w.tracer.Record(trace.DirectionOut, name, payload)
	if err := w.transport.WritePayload(ioCtx, message); err != nil {
		w.writeErrors.Add(1)
		terr := &TransportError{Op: "write " + name, Err: errors.Join(ErrTransportWrite, err), Retryable: true}
		Debugf("WLC: %v", terr)
		w.tracer.Error(terr)
	}
}

// execute performs one action. It returns false only when the radio
// rejected a power transfer request.
func (w *watchdog) execute(ctx context.Context, action Action) bool {
	if action.Kind != ActionNone {
		w.tracer.Action(action.String())
	}

	switch action.Kind {
	case ActionSendPowerInfo:
		info := w.cfg.PowerInfo()
		msg, err := MarshalPowerInfoMessage(info)
		if err != nil {
			Debugf("WLC: %v", err)
			w.tracer.Error(err)
			return true
		}
		w.write(ctx, RecordPowerInfo.String(), EncodePowerInfo(info), msg)
	case ActionSendEmptyAck:
		msg, err := MarshalEmptyMessage()
		if err != nil {
			Debugf("WLC: %v", err)
			w.tracer.Error(err)
			return true
		}
		w.write(ctx, "empty", EncodeEmptyAck(), msg)
	case ActionStartPowerTransfer:
		if !w.transport.RequestPowerTransfer(action.PowerAdjust, action.DurationExp) {
			w.radioFailures.Add(1)
			err := &RadioError{Op: "power transfer", Err: ErrPowerTransfer}
			Debugf("WLC: %v", err)
			w.tracer.Error(err)
			return false
		}
	case ActionStartPresenceCheck:
		w.transport.StartPresenceCheck(action.Interval, w.raiseLost)
	case ActionStopPresenceCheck:
		w.transport.StopPresenceCheck()
	case ActionDisconnect:
		w.disconnect()
	default:
	}
	return true
}

func (w *watchdog) disconnect() {
	if w.disconnected {
		return
	}
	w.disconnected = true
	if err := w.transport.Disconnect(); err != nil {
		Debugf("WLC: disconnect failed: %v", err)
		w.tracer.Error(err)
	}
}

func (w *watchdog) flushTelemetry() {
	snap, ok := w.store.DrainIfDirty()
	if !ok || w.notify == nil {
		return
	}
	if err := safeNotify(w.notify, snap); err != nil {
		Debugf("WLC: %v", err)
		w.tracer.Error(err)
	}
}

// teardown runs exactly once when the loop exits
func (w *watchdog) teardown() {
	w.once.Do(func() {
		Debugf("WLC: session ended (present=%t stopped=%t full=%t)", w.present, w.stopped, w.full)

		w.store.Reset()
		w.store.SetState(Disconnected)
		w.flushTelemetry()

		w.state = NewSessionState(w.state.MultiTag, w.cfg.PresenceCheckInterval)
		w.viewM.Lock()
		w.view = w.state
		w.viewM.Unlock()

		w.transport.StopPresenceCheck()
		w.disconnect()
		if !w.transport.EnableWirelessCharging(ModeOff) {
			err := &RadioError{Op: "disable", Err: ErrRadioEnable}
			Debugf("WLC: %v", err)
			w.tracer.Error(err)
		}
		w.tracer.Lifecycle("session ended")

		w.finished.Store(true)
		if w.ended != nil {
			w.ended(w)
		}
	})
}

func safeNotify(fn func(Snapshot), snap Snapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("telemetry callback panicked: %v", r)
		}
	}()
	fn(snap)
	return nil
}

// safeTimerStop stops a timer and drains its channel if it already fired
func safeTimerStop(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
