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

import "time"

// Protocol timing used between states
const (
	negotiationDelay     = 5 * time.Millisecond
	readControlMargin    = 20 * time.Millisecond
	controlRetryWait     = 30 * time.Millisecond
	transferMargin       = 5000 * time.Millisecond
	stepDelay            = 1 * time.Millisecond
	presenceArmThreshold = 4000 * time.Millisecond
	maxControlRetries    = 3
	batteryFullLevel     = 100
)

// DefaultPresenceCheckInterval is used while the listener sleeps between transfers
const DefaultPresenceCheckInterval = 200 * time.Millisecond

// Step advances the poller by one event. It performs no I/O.
func Step(s SessionState, ev Event) Result {
	switch ev.Kind {
	case EventExternalStop:
		return stepExternalStop(s, ev.Reason)
	case EventRadioFailure:
		return stepRadioFailure(s)
	default:
	}

	switch s.State {
	case ReadCapability:
		return stepReadCapability(s, ev)
	case StaticTransfer:
		s.State = ReadCapability
		s.ChargingActive = true
		return Result{
			State: s,
			Action: Action{
				Kind:        ActionStartPowerTransfer,
				PowerAdjust: s.Control.PowerAdjust,
				DurationExp: s.Capability.CapWaitExp,
			},
			Wait: WaitFor(s.Capability.CapWait + transferMargin),
		}
	case NegotiationWait:
		return stepNegotiationWait(s)
	case WritePowerInfo:
		s.State = ReadControl
		return Result{
			State:  s,
			Action: Action{Kind: ActionSendPowerInfo},
			Wait:   WaitFor(s.Capability.NdefReadWait + readControlMargin),
		}
	case ReadControl:
		return stepReadControl(s, ev)
	case ReadConfirm:
		s.State = CheckWptRequested
		return Result{
			State:  s,
			Action: Action{Kind: ActionSendEmptyAck},
			Wait:   WaitFor(stepDelay),
		}
	case CheckWptRequested:
		return stepCheckWptRequested(s)
	case HandleWpt:
		s.State = HandleInfoReq
		s.ChargingActive = true
		return Result{
			State: s,
			Action: Action{
				Kind:        ActionStartPowerTransfer,
				PowerAdjust: s.Control.PowerAdjust,
				DurationExp: s.Control.WptDurationExp,
			},
			Wait: WaitFor(s.Control.WptDuration + transferMargin),
		}
	case HandleInfoReq:
		if s.Control.WptInfoRequested {
			s.State = WritePowerInfo
		} else {
			s.State = ReadControl
		}
		return Result{State: s, Wait: Continue()}
	case ReadRemovalDetection:
		s.State = ReadCapability
		s.ChargingActive = false
		s.ListenerPresent = false
		return Result{
			State:  s,
			Action: Action{Kind: ActionStopPresenceCheck},
			Wait:   WaitFor(stepDelay),
			Signal: SignalLost,
		}
	case WptTimeCompleted:
		s.State = HandleInfoReq
		return Result{State: s, Wait: Continue()}
	case WptFodOrRemoval:
		s.State = ReadCapability
		s.ChargingActive = false
		s.ListenerPresent = false
		return Result{State: s, Wait: Continue(), Signal: SignalLost}
	default:
		s.State = ReadCapability
		return Result{State: s, Wait: WaitFor(stepDelay)}
	}
}

func stepReadCapability(s SessionState, ev Event) Result {
	reports := []Report{StateReport(ConnectedCharging)}
	s.FirstCapabilityRead = false

	if ev.Kind != EventCapabilityReceived {
		return listenerLost(s, reports)
	}
	msg, err := ParseCapabilityMessage(ev.Records)
	if err != nil {
		return listenerLost(s, reports)
	}

	s.Capability = msg.Capability
	s.ChargingActive = true
	if msg.Status != nil {
		reports = append(reports, statusReports(*msg.Status)...)
	}
	if msg.Vendor != nil {
		reports = append(reports, MetricReport(MetricVendorID, int(msg.Vendor.VendorID)))
	}

	switch {
	case s.Capability.Mode == ModeBatteryFull:
		s.State = ReadRemovalDetection
		s.ChargingActive = false
		reports = append(reports,
			MetricReport(MetricBatteryLevel, batteryFullLevel),
			Report{Kind: ReportBatteryNotified, Value: batteryFullLevel},
			StateReport(ConnectedNotCharging),
		)
		return Result{
			State:   s,
			Wait:    WaitFor(s.Capability.CapWait),
			Signal:  SignalFull,
			Reports: reports,
		}
	case s.Capability.Mode == ModeStatic || s.MultiTag:
		s.State = StaticTransfer
		return Result{State: s, Wait: Continue(), Reports: reports}
	default:
		s.State = NegotiationWait
		return Result{State: s, Wait: WaitFor(negotiationDelay), Reports: reports}
	}
}

// listenerLost ends the cycle when no usable WLC_CAP could be read
func listenerLost(s SessionState, reports []Report) Result {
	s.State = ReadCapability
	s.ListenerPresent = false
	return Result{
		State:   s,
		Action:  Action{Kind: ActionDisconnect},
		Wait:    WaitFor(stepDelay),
		Signal:  SignalLost,
		Reports: reports,
	}
}

func stepNegotiationWait(s SessionState) Result {
	if !s.Capability.NegoWait {
		s.State = WritePowerInfo
		return Result{State: s, Wait: WaitFor(negotiationDelay)}
	}

	s.State = ReadCapability
	if s.NegoRetry > int(s.Capability.MaxRetries) {
		s.ListenerPresent = false
		return Result{State: s, Wait: WaitFor(stepDelay), Signal: SignalLost}
	}
	s.NegoRetry++
	return Result{State: s, Wait: WaitFor(s.Capability.CapWait)}
}

func stepReadControl(s SessionState, ev Event) Result {
	if ev.Kind != EventControlReceived {
		return retryControl(s, nil)
	}
	msg, err := ParseControlMessage(ev.Records)
	if err != nil {
		return retryControl(s, nil)
	}

	var reports []Report
	if msg.Control.BatteryLevel != nil {
		reports = append(reports, MetricReport(MetricBatteryLevel, int(*msg.Control.BatteryLevel)))
	}
	if msg.Status != nil {
		reports = append(reports, statusReports(*msg.Status)...)
	}

	seq := int(msg.Control.SequenceCount)
	if s.LastSequence != -1 && seq == s.LastSequence {
		return retryControl(s, reports)
	}

	s.CtlRetry = 0
	s.LastSequence = seq
	s.Control = msg.Control

	if s.Capability.ReadConfirm {
		s.State = ReadConfirm
		return Result{State: s, Wait: WaitFor(s.Capability.NdefWriteTimeout), Reports: reports}
	}
	s.State = CheckWptRequested
	return Result{State: s, Wait: WaitFor(stepDelay), Reports: reports}
}

// retryControl re-reads WLC_CTL after 30 ms, three times at most
func retryControl(s SessionState, reports []Report) Result {
	if s.CtlRetry < maxControlRetries {
		s.CtlRetry++
		return Result{State: s, Wait: WaitFor(controlRetryWait), Reports: reports}
	}
	s.CtlRetry = 0
	s.ListenerPresent = false
	return Result{State: s, Wait: WaitFor(stepDelay), Signal: SignalLost, Reports: reports}
}

func stepCheckWptRequested(s SessionState) Result {
	if !s.Control.WptRequested {
		s.State = ReadRemovalDetection
		res := Result{State: s, Wait: WaitFor(s.Control.WptDuration)}
		if s.Control.WptDuration > presenceArmThreshold {
			res.Action = Action{Kind: ActionStartPresenceCheck, Interval: s.PresenceCheckInterval}
		}
		return res
	}
	s.State = HandleWpt
	return Result{State: s, Wait: WaitFor(stepDelay + s.Control.HoldOffWait)}
}

func stepExternalStop(s SessionState, reason StopReason) Result {
	negotiated := s.Capability.Mode == ModeNegotiated
	switch {
	case reason == StopTimeCompleted && negotiated:
		s.State = WptTimeCompleted
	case reason == StopFodOrRemoval && negotiated, reason == StopError:
		s.State = WptFodOrRemoval
	default:
		s.State = ReadCapability
	}
	return Result{State: s, Wait: Continue()}
}

func stepRadioFailure(s SessionState) Result {
	s.State = ReadCapability
	s.ChargingActive = false
	return Result{State: s, Wait: WaitFor(max(s.Capability.CapWait, minCapWait))}
}

func statusReports(st Status) []Report {
	var reports []Report
	if st.BatteryLevel != nil {
		reports = append(reports, MetricReport(MetricBatteryLevel, int(*st.BatteryLevel)))
	}
	if st.ReceivePower != nil {
		reports = append(reports, MetricReport(MetricReceivePower, int(*st.ReceivePower)))
	}
	if st.ReceiveVoltage != nil {
		reports = append(reports, MetricReport(MetricReceiveVoltage, int(*st.ReceiveVoltage)))
	}
	if st.BatteryTemperature != nil {
		reports = append(reports, MetricReport(MetricBatteryTemperature, int(*st.BatteryTemperature)))
	}
	if st.ListenerTemperature != nil {
		reports = append(reports, MetricReport(MetricListenerTemperature, int(*st.ListenerTemperature)))
	}
	return reports
}
