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

import "fmt"

const vendorMinLength = 9

// VendorInfo identifies the listener's manufacturer and device
type VendorInfo struct {
	DeviceID uint64 // 52-bit device identifier
	VendorID uint16 // 12-bit vendor identifier
}

func (v VendorInfo) String() string {
	return fmt.Sprintf("vendor=%03X device=%013X", v.VendorID, v.DeviceID)
}

// DecodeVendorInfo decodes a usi:wlc record. It reports false for any other
// record type or a payload of 8 bytes or fewer.
func DecodeVendorInfo(rec Record) (VendorInfo, bool) {
	if !rec.Is(RecordVendorID) {
		return VendorInfo{}, false
	}
	p := rec.Payload
	if len(p) < vendorMinLength {
		return VendorInfo{}, false
	}

	info := VendorInfo{
		VendorID: (uint16(p[8])<<8 | uint16(p[7])) >> 4,
		DeviceID: uint64(p[7]&0x0F) << 48,
	}
	for j := 6; j > 0; j-- {
		info.DeviceID |= uint64(p[j]) << ((j - 1) * 8)
	}

	return info, true
}
