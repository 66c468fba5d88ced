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

// ModeReq is the mode requested by the listener in WLC_CAP
type ModeReq uint8

const (
	ModeStatic      ModeReq = 0
	ModeNegotiated  ModeReq = 1
	ModeBatteryFull ModeReq = 2
	ModeReserved    ModeReq = 3
)

// String returns a readable mode name
func (m ModeReq) String() string {
	switch m {
	case ModeStatic:
		return "static"
	case ModeNegotiated:
		return "negotiated"
	case ModeBatteryFull:
		return "battery-full"
	default:
		return "reserved"
	}
}

// WLC_CAP field limits
const (
	capabilityMinLength = 6

	maxCapWaitExp       = 0x13
	minCapWait          = 250 * time.Millisecond
	fixedNdefReadWait   = 2540 * time.Millisecond
	maxNdefWriteTimeExp = 4
	maxNdefWriteWait    = 0x0A
)

// Capability holds the decoded WLC_CAP record
type Capability struct {
	CapWait          time.Duration // T_CAP_WT, at least 250 ms
	NdefReadWait     time.Duration // T_NDEF_RD_WT
	NdefWriteTimeout time.Duration // T_NDEF_WR_TO
	Mode             ModeReq
	MaxRetries       uint8 // N_WT_MAX
	CapWaitExp       uint8 // clamped exponent, passed to the radio in static mode
	NdefWriteWaitRaw uint8 // N_NDEF_WR_WT, clamped to 0x0A
	NegoWait         bool
	ReadConfirm      bool
}

// DecodeCapability decodes a WLC_CAP record. Out-of-range timing fields are
// clamped rather than rejected; only a short payload or the reserved mode
// combination fails.
func DecodeCapability(rec Record) (Capability, error) {
	if !rec.Is(RecordCapability) {
		return Capability{}, newFormatError(RecordCapability, rec.Payload, ErrWrongRecordType)
	}
	p := rec.Payload
	if len(p) < capabilityMinLength {
		return Capability{}, newFormatError(RecordCapability, p, ErrTooShort)
	}
	if p[1]&0xC0 == 0xC0 {
		return Capability{}, newFormatError(RecordCapability, p, ErrInvalidModeReq)
	}

	capability := Capability{
		Mode:        ModeReq((p[1] >> 6) & 0x03),
		MaxRetries:  (p[1] >> 2) & 0x0F,
		NegoWait:    p[1]&0x02 != 0,
		ReadConfirm: p[1]&0x01 != 0,
	}

	capability.CapWaitExp = min(p[2]&0x1F, maxCapWaitExp)
	capability.CapWait = max(pow2Millis(capability.CapWaitExp+3), minCapWait)

	if p[3] == 0x00 || p[3] == 0xFF {
		capability.NdefReadWait = fixedNdefReadWait
	} else {
		capability.NdefReadWait = time.Duration(p[3]) * 10 * time.Millisecond
	}

	writeTimeoutExp := p[4]
	if writeTimeoutExp == 0 || writeTimeoutExp > maxNdefWriteTimeExp {
		writeTimeoutExp = maxNdefWriteTimeExp
	}
	capability.NdefWriteTimeout = pow2Millis(writeTimeoutExp + 5)

	capability.NdefWriteWaitRaw = min(p[5], maxNdefWriteWait)

	return capability, nil
}

// pow2Millis returns 2^exp milliseconds
func pow2Millis(exp uint8) time.Duration {
	return time.Duration(uint64(1)<<exp) * time.Millisecond
}
