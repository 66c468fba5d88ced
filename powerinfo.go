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

const powerInfoLength = 6

// PowerInfo is the poller's WLCP_INFO record
type PowerInfo struct {
	Ptx                 uint8 // transmit power, percent of class maximum
	PowerClass          uint8
	TotalPowerSteps     uint8
	CurrentPowerStep    uint8
	NextMinStepIncrease uint8
	NextMinStepDecrease uint8
}

// EncodePowerInfo serialises p into the fixed 6-byte WLCINF payload
func EncodePowerInfo(p PowerInfo) []byte {
	return []byte{
		p.Ptx,
		p.PowerClass,
		p.TotalPowerSteps,
		p.CurrentPowerStep,
		p.NextMinStepIncrease,
		p.NextMinStepDecrease,
	}
}

// DecodePowerInfo is the inverse of EncodePowerInfo
func DecodePowerInfo(payload []byte) (PowerInfo, error) {
	if len(payload) < powerInfoLength {
		return PowerInfo{}, newFormatError(RecordPowerInfo, payload, ErrTooShort)
	}
	return PowerInfo{
		Ptx:                 payload[0],
		PowerClass:          payload[1],
		TotalPowerSteps:     payload[2],
		CurrentPowerStep:    payload[3],
		NextMinStepIncrease: payload[4],
		NextMinStepDecrease: payload[5],
	}, nil
}

// EncodeEmptyAck returns the zero-length read confirmation payload
func EncodeEmptyAck() []byte {
	return []byte{}
}
