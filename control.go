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

// WLC_CTL field limits
const (
	controlMinLength = 6

	maxWptDurationExp  = 0x13
	maxPowerAdjustUp   = 0x14 // +20
	minPowerAdjustDown = 0xF6 // -10
	maxBatteryLevel    = 0x64
	maxHoldOffWait     = 0x0F

	// BatteryStatusLevelValid means byte 3 of WLC_CTL carries the battery level
	BatteryStatusLevelValid uint8 = 0x01
)

// Control holds the decoded WLC_CTL record
type Control struct {
	BatteryLevel     *uint8        // set only when BatteryStatus reports a valid level
	WptDuration      time.Duration // T_WPT_DURATION
	HoldOffWait      time.Duration // T_HOLD_OFF_WT
	PowerAdjust      int8          // in [-10, +20]
	BatteryStatus    uint8         // 0..3
	SequenceCount    uint8         // 0..7
	WptDurationExp   uint8         // clamped exponent, passed to the radio
	ErrorFlag        bool
	WptRequested     bool
	WptInfoRequested bool
}

// DecodeControl decodes a WLC_CTL record. Malformed fields are replaced by
// their neutral value instead of failing the whole record.
func DecodeControl(rec Record) (Control, error) {
	if !rec.Is(RecordControl) {
		return Control{}, newFormatError(RecordControl, rec.Payload, ErrWrongRecordType)
	}
	p := rec.Payload
	if len(p) < controlMinLength {
		return Control{}, newFormatError(RecordControl, p, ErrTooShort)
	}

	ctl := Control{
		ErrorFlag:     p[0]&0x80 != 0,
		BatteryStatus: (p[0] >> 3) & 0x03,
		SequenceCount: p[0] & 0x07,
	}

	// Values 2 and 3 are reserved and read as "no WPT requested"
	ctl.WptRequested = (p[1]>>6)&0x03 == 1

	ctl.WptDurationExp = min((p[1]>>1)&0x1F, maxWptDurationExp)
	ctl.WptDuration = pow2Millis(ctl.WptDurationExp + 3)

	ctl.WptInfoRequested = ctl.WptRequested && p[1]&0x01 != 0

	if p[2] <= maxPowerAdjustUp || p[2] >= minPowerAdjustDown {
		ctl.PowerAdjust = int8(p[2])
	}

	if p[3] < maxBatteryLevel && ctl.BatteryStatus == BatteryStatusLevelValid {
		level := p[3]
		ctl.BatteryLevel = &level
	}

	ctl.HoldOffWait = time.Duration(min(p[5], maxHoldOffWait)) * 2 * time.Millisecond

	return ctl, nil
}
