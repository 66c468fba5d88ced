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
	"encoding/binary"
	"fmt"
)

// MaxNDEFMessageSize bounds every NDEF message parsed or built by the codec
const MaxNDEFMessageSize = 8192

// NDEF record header flags
const (
	flagMB  = 0x80 // Message Begin
	flagME  = 0x40 // Message End
	flagCF  = 0x20 // Chunk Flag
	flagSR  = 0x10 // Short Record
	flagIL  = 0x08 // ID Length present
	flagTNF = 0x07 // Type Name Format mask
)

// TNF (Type Name Format) values
const (
	tnfEmpty     = 0x00
	tnfWellKnown = 0x01
	tnfUnknown   = 0x05
	tnfUnchanged = 0x06
	tnfReserved  = 0x07
)

const maxRecordsPerMessage = 255

// ndefRecordHeader is the framing of one record, before its fields are read
type ndefRecordHeader struct {
	PayloadLength uint32
	TNF           uint8
	TypeLength    uint8
	IDLength      uint8
	MB            bool
	ME            bool
	CF            bool
	SR            bool
	IL            bool
}

// validateNDEFStructure walks the record headers of raw and checks every
// declared length against the bytes that remain, so the NDEF decoder never
// sizes a buffer from an unchecked length field.
func validateNDEFStructure(raw []byte) error {
	if len(raw) == 0 {
		return ErrEmptyMessage
	}
	if len(raw) > MaxNDEFMessageSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrMessageTooLarge, len(raw), MaxNDEFMessageSize)
	}

	pos := 0
	for count := 0; pos < len(raw); count++ {
		if count >= maxRecordsPerMessage {
			return ErrTooManyRecords
		}

		rec, consumed, err := validateRecord(raw[pos:])
		if err != nil {
			return fmt.Errorf("record %d: %w", count, err)
		}
		if rec.MB != (count == 0) {
			return fmt.Errorf("record %d: %w: MB flag", count, ErrInvalidRecordHeader)
		}

		pos += consumed
		if rec.ME {
			if pos != len(raw) {
				return fmt.Errorf("record %d: %w: data after ME flag", count, ErrInvalidRecordHeader)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: no record with ME flag", ErrIncompleteRecord)
}

// validateRecord checks one record and returns its total size
func validateRecord(data []byte) (ndefRecordHeader, int, error) {
	if len(data) < 3 {
		return ndefRecordHeader{}, 0, ErrIncompleteRecord
	}

	rec := parseRecordHeader(data[0])
	switch {
	case rec.CF || rec.TNF == tnfUnchanged:
		// WLC records are never chunked
		return rec, 0, fmt.Errorf("%w: chunked record", ErrInvalidRecordHeader)
	case rec.TNF == tnfReserved:
		return rec, 0, fmt.Errorf("%w: reserved TNF", ErrInvalidRecordHeader)
	default:
	}

	rec.TypeLength = data[1]
	pos := 2

	if rec.SR {
		rec.PayloadLength = uint32(data[pos])
		pos++
	} else {
		if pos+4 > len(data) {
			return rec, 0, ErrIncompleteRecord
		}
		rec.PayloadLength = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}

	if rec.IL {
		if pos >= len(data) {
			return rec, 0, ErrIncompleteRecord
		}
		rec.IDLength = data[pos]
		pos++
	}

	if err := validateLengths(rec); err != nil {
		return rec, 0, err
	}

	// Compare in uint64 so a 4 GiB payload length cannot wrap
	total := uint64(pos) + uint64(rec.TypeLength) + uint64(rec.IDLength) + uint64(rec.PayloadLength)
	if total > uint64(len(data)) {
		return rec, 0, fmt.Errorf("%w: needs %d bytes, %d left", ErrIncompleteRecord, total, len(data))
	}
	return rec, int(total), nil
}

func parseRecordHeader(header byte) ndefRecordHeader {
	return ndefRecordHeader{
		MB:  header&flagMB != 0,
		ME:  header&flagME != 0,
		CF:  header&flagCF != 0,
		SR:  header&flagSR != 0,
		IL:  header&flagIL != 0,
		TNF: header & flagTNF,
	}
}

func validateLengths(rec ndefRecordHeader) error {
	switch rec.TNF {
	case tnfEmpty:
		if rec.TypeLength != 0 || rec.PayloadLength != 0 || rec.IDLength != 0 {
			return fmt.Errorf("%w: empty record with non-zero lengths", ErrInvalidRecordHeader)
		}
	case tnfUnknown:
		if rec.TypeLength != 0 {
			return fmt.Errorf("%w: unknown record with type", ErrInvalidRecordHeader)
		}
	case tnfWellKnown:
		if rec.TypeLength == 0 {
			return fmt.Errorf("%w: empty well-known type", ErrInvalidRecordHeader)
		}
	default:
	}
	return nil
}
