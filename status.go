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

// WLC_STAI control byte bits, in the order their value bytes follow
const (
	StatusBatteryLevel   uint8 = 0x01
	StatusReceivePower   uint8 = 0x02
	StatusReceiveVoltage uint8 = 0x04
	StatusBatteryTemp    uint8 = 0x08
	StatusListenerTemp   uint8 = 0x10
)

// Status holds the optional metrics of a WLC_STAI record. A nil field was
// not announced by the control byte or fell past the end of the payload.
type Status struct {
	BatteryLevel        *uint8
	ReceivePower        *uint8
	ReceiveVoltage      *uint8
	BatteryTemperature  *int8
	ListenerTemperature *int8
}

// DecodeStatus decodes a WLC_STAI record. Value bytes are consumed strictly
// in bit order and decoding stops quietly when the payload runs out.
func DecodeStatus(rec Record) (Status, error) {
	if !rec.Is(RecordStatus) {
		return Status{}, newFormatError(RecordStatus, rec.Payload, ErrWrongRecordType)
	}
	p := rec.Payload
	if len(p) == 0 {
		return Status{}, newFormatError(RecordStatus, p, ErrTooShort)
	}

	var st Status
	control := p[0]
	pos := 1

	next := func(bit uint8) (uint8, bool) {
		if control&bit == 0 || pos >= len(p) {
			return 0, false
		}
		v := p[pos]
		pos++
		return v, true
	}

	if v, ok := next(StatusBatteryLevel); ok {
		st.BatteryLevel = &v
	}
	if v, ok := next(StatusReceivePower); ok {
		st.ReceivePower = &v
	}
	if v, ok := next(StatusReceiveVoltage); ok {
		st.ReceiveVoltage = &v
	}
	if v, ok := next(StatusBatteryTemp); ok {
		t := int8(v)
		st.BatteryTemperature = &t
	}
	if v, ok := next(StatusListenerTemp); ok {
		t := int8(v)
		st.ListenerTemperature = &t
	}

	return st, nil
}
