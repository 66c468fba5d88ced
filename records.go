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

import "bytes"

// RecordType identifies one of the WLC record kinds
type RecordType int

const (
	RecordUnknown RecordType = iota
	RecordCapability
	RecordControl
	RecordStatus
	RecordVendorID
	RecordPowerInfo
)

// Registered NFC Forum type names, as carried in the NDEF record type field
var (
	TypeCapability = []byte("WLCCAP")
	TypeControl    = []byte("WLCCTL")
	TypeStatus     = []byte("WLCSTAI")
	TypeVendorID   = []byte("usi:wlc")
	TypePowerInfo  = []byte("WLCINF")
)

// String returns the registered type name
func (t RecordType) String() string {
	switch t {
	case RecordCapability:
		return string(TypeCapability)
	case RecordControl:
		return string(TypeControl)
	case RecordStatus:
		return string(TypeStatus)
	case RecordVendorID:
		return string(TypeVendorID)
	case RecordPowerInfo:
		return string(TypePowerInfo)
	default:
		return "unknown"
	}
}

// Tag returns the type identifier bytes, or nil for RecordUnknown
func (t RecordType) Tag() []byte {
	switch t {
	case RecordCapability:
		return TypeCapability
	case RecordControl:
		return TypeControl
	case RecordStatus:
		return TypeStatus
	case RecordVendorID:
		return TypeVendorID
	case RecordPowerInfo:
		return TypePowerInfo
	default:
		return nil
	}
}

// ClassifyRecordType maps a raw type field to a RecordType
func ClassifyRecordType(tag []byte) RecordType {
	for _, t := range []RecordType{
		RecordCapability, RecordControl, RecordStatus, RecordVendorID, RecordPowerInfo,
	} {
		if bytes.Equal(tag, t.Tag()) {
			return t
		}
	}
	return RecordUnknown
}

// Record is a single (type, payload) pair read from or written to a listener
type Record struct {
	Type    []byte
	Payload []byte
}

// NewRecord builds a record of a known type
func NewRecord(t RecordType, payload []byte) Record {
	return Record{Type: t.Tag(), Payload: payload}
}

// Kind classifies the record's type field
func (r Record) Kind() RecordType {
	return ClassifyRecordType(r.Type)
}

// Is reports whether the record carries the given type
func (r Record) Is(t RecordType) bool {
	return t != RecordUnknown && bytes.Equal(r.Type, t.Tag())
}
