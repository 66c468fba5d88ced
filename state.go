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
	"time"
)

// State is one of the twelve poller protocol states
type State int

const (
	ReadCapability State = iota
	StaticTransfer
	NegotiationWait
	WritePowerInfo
	ReadControl
	ReadConfirm
	CheckWptRequested
	HandleWpt
	HandleInfoReq
	ReadRemovalDetection
	WptTimeCompleted
	WptFodOrRemoval
	stateCount
)

var stateNames = [...]string{
	ReadCapability:       "read WLC_CAP",
	StaticTransfer:       "static WPT",
	NegotiationWait:      "handle NEGO_WAIT",
	WritePowerInfo:       "write WLCP_INFO",
	ReadControl:          "read WLCL_CTL",
	ReadConfirm:          "read confirmation",
	CheckWptRequested:    "check WPT requested",
	HandleWpt:            "handle WPT",
	HandleInfoReq:        "handle INFO_REQ",
	ReadRemovalDetection: "handle removal detection",
	WptTimeCompleted:     "WPT time completed",
	WptFodOrRemoval:      "WPT FOD or removal",
}

func (s State) String() string {
	if s >= 0 && s < stateCount {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ReadsRecord returns the record type the watchdog must read before
// stepping out of s, or RecordUnknown when s only needs a tick
func (s State) ReadsRecord() RecordType {
	switch s {
	case ReadCapability:
		return RecordCapability
	case ReadControl:
		return RecordControl
	default:
		return RecordUnknown
	}
}

// StopReason is the end condition reported by the radio when power transfer stops
type StopReason int

const (
	StopTimeCompleted StopReason = iota
	StopFodOrRemoval
	StopError
)

// StopReasonFromCode maps the radio's WPT end condition byte
func StopReasonFromCode(code byte) StopReason {
	switch code {
	case 0x00:
		return StopTimeCompleted
	case 0x01:
		return StopFodOrRemoval
	default:
		return StopError
	}
}

func (r StopReason) String() string {
	switch r {
	case StopTimeCompleted:
		return "time completed"
	case StopFodOrRemoval:
		return "FOD or removal"
	default:
		return "error"
	}
}

// SessionState is everything the state machine remembers between steps.
// It is a value: Step returns a modified copy.
type SessionState struct {
	Capability            Capability
	Control               Control
	State                 State
	NegoRetry             int
	CtlRetry              int
	LastSequence          int // -1 until the first valid WLC_CTL
	PresenceCheckInterval time.Duration
	FirstCapabilityRead   bool // next ReadCapability consumes the discovery message
	ChargingActive        bool
	ListenerPresent       bool
	MultiTag              bool
}

// NewSessionState returns the state a session starts in
func NewSessionState(multiTag bool, presenceInterval time.Duration) SessionState {
	if presenceInterval <= 0 {
		presenceInterval = DefaultPresenceCheckInterval
	}
	return SessionState{
		State:                 ReadCapability,
		LastSequence:          -1,
		PresenceCheckInterval: presenceInterval,
		FirstCapabilityRead:   true,
		ListenerPresent:       true,
		MultiTag:              multiTag,
	}
}

// EventKind discriminates Event
type EventKind int

const (
	EventTick EventKind = iota
	EventNoData
	EventCapabilityReceived
	EventControlReceived
	EventExternalStop
	EventRadioFailure
)

func (k EventKind) String() string {
	switch k {
	case EventTick:
		return "tick"
	case EventNoData:
		return "no data"
	case EventCapabilityReceived:
		return "capability received"
	case EventControlReceived:
		return "control received"
	case EventExternalStop:
		return "external stop"
	case EventRadioFailure:
		return "radio failure"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is the input to one Step
type Event struct {
	Records []Record
	Kind    EventKind
	Reason  StopReason
}

// Tick is delivered to states that do not read from the listener
func Tick() Event { return Event{Kind: EventTick} }

// NoData reports a read that returned nothing
func NoData() Event { return Event{Kind: EventNoData} }

// CapabilityReceived carries the records of a capability read
func CapabilityReceived(records []Record) Event {
	return Event{Kind: EventCapabilityReceived, Records: records}
}

// ControlReceived carries the records of a control read
func ControlReceived(records []Record) Event {
	return Event{Kind: EventControlReceived, Records: records}
}

// ExternalStop carries the radio's power-transfer stop notification
func ExternalStop(reason StopReason) Event {
	return Event{Kind: EventExternalStop, Reason: reason}
}

// RadioFailure reports that the radio rejected the last action
func RadioFailure() Event { return Event{Kind: EventRadioFailure} }

// ActionKind discriminates Action
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionSendPowerInfo
	ActionSendEmptyAck
	ActionStartPowerTransfer
	ActionStartPresenceCheck
	ActionStopPresenceCheck
	ActionDisconnect
)

func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionSendPowerInfo:
		return "send power info"
	case ActionSendEmptyAck:
		return "send empty ack"
	case ActionStartPowerTransfer:
		return "start power transfer"
	case ActionStartPresenceCheck:
		return "start presence check"
	case ActionStopPresenceCheck:
		return "stop presence check"
	case ActionDisconnect:
		return "disconnect"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// Action is the one side effect the watchdog performs after a step
type Action struct {
	Interval    time.Duration // ActionStartPresenceCheck
	Kind        ActionKind
	PowerAdjust int8  // ActionStartPowerTransfer
	DurationExp uint8 // ActionStartPowerTransfer
}

func (a Action) String() string {
	switch a.Kind {
	case ActionStartPowerTransfer:
		return fmt.Sprintf("%s(adjust=%d, exp=%d)", a.Kind, a.PowerAdjust, a.DurationExp)
	case ActionStartPresenceCheck:
		return fmt.Sprintf("%s(%v)", a.Kind, a.Interval)
	default:
		return a.Kind.String()
	}
}

// Wait is how long the watchdog sleeps before the next step
type Wait struct {
	d time.Duration
}

// Continue steps again right away
func Continue() Wait { return Wait{} }

// WaitFor sleeps d before the next step
func WaitFor(d time.Duration) Wait { return Wait{d: max(d, 0)} }

// Immediate reports whether the next step runs without sleeping
func (w Wait) Immediate() bool { return w.d <= 0 }

// Duration returns the sleep time, zero for Continue
func (w Wait) Duration() time.Duration { return w.d }

func (w Wait) String() string {
	if w.Immediate() {
		return "continue"
	}
	return w.d.String()
}

// Signal is raised by a step to end the session loop
type Signal int

const (
	SignalNone Signal = iota
	SignalLost
	SignalFull
)

func (s Signal) String() string {
	switch s {
	case SignalLost:
		return "lost"
	case SignalFull:
		return "full"
	default:
		return "none"
	}
}

// ReportKind discriminates Report
type ReportKind int

const (
	ReportMetric ReportKind = iota
	ReportState
	ReportBatteryNotified
)

// Report is a telemetry update produced by a step
type Report struct {
	Kind   ReportKind
	Metric Metric
	Value  int
	State  ConnectionState
}

// MetricReport sets metric to value
func MetricReport(metric Metric, value int) Report {
	return Report{Kind: ReportMetric, Metric: metric, Value: value}
}

// StateReport sets the connection state
func StateReport(state ConnectionState) Report {
	return Report{Kind: ReportState, State: state}
}

// Result is the outcome of one Step
type Result struct {
	Reports []Report
	Action  Action
	Wait    Wait
	State   SessionState
	Signal  Signal
}
