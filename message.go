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

	"github.com/hsanjuan/go-ndef"
	"github.com/hsanjuan/go-ndef/types/generic"
)

// ParseMessage splits a raw NDEF message into WLC records.
// Records whose payload cannot be extracted are skipped.
func ParseMessage(raw []byte) ([]Record, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyMessage
	}
	if err := validateNDEFStructure(raw); err != nil {
		return nil, fmt.Errorf("invalid NDEF message: %w", err)
	}

	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("failed to parse NDEF message: %w", err)
	}

	records := make([]Record, 0, len(msg.Records))
	for _, rec := range msg.Records {
		payload, err := rec.Payload()
		if err != nil {
			Debugf("skipping NDEF record %q: %v", rec.Type(), err)
			continue
		}
		records = append(records, Record{
			Type:    []byte(rec.Type()),
			Payload: payload.Marshal(),
		})
	}

	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// MarshalRecords frames records as a well-known-type NDEF message
func MarshalRecords(records ...Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	recs := make([]*ndef.Record, 0, len(records))
	for _, r := range records {
		recs = append(recs, ndef.NewRecord(
			ndef.NFCForumWellKnownType, string(r.Type), "", generic.New(r.Payload)))
	}

	raw, err := ndef.NewMessageFromRecords(recs...).Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal NDEF message: %w", err)
	}
	if len(raw) > MaxNDEFMessageSize {
		return nil, fmt.Errorf("%w: marshaled size %d", ErrMessageTooLarge, len(raw))
	}
	return raw, nil
}

// MarshalPowerInfoMessage builds the WLCP_INFO message written in WritePowerInfo
func MarshalPowerInfoMessage(p PowerInfo) ([]byte, error) {
	return MarshalRecords(NewRecord(RecordPowerInfo, EncodePowerInfo(p)))
}

// MarshalEmptyMessage builds the single empty-TNF record used as read confirmation
func MarshalEmptyMessage() ([]byte, error) {
	rec := ndef.NewRecord(ndef.Empty, "", "", generic.New(EncodeEmptyAck()))
	raw, err := ndef.NewMessageFromRecords(rec).Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal empty NDEF message: %w", err)
	}
	return raw, nil
}

// CapabilityMessage is a WLC_CAP record with the optional records that may
// follow it in the same NDEF message
type CapabilityMessage struct {
	Status     *Status
	Vendor     *VendorInfo
	Capability Capability
}

// ParseCapabilityMessage decodes the first record as WLC_CAP and scans the
// rest for WLC_STAI and usi:wlc. Malformed trailing records are ignored.
func ParseCapabilityMessage(records []Record) (CapabilityMessage, error) {
	if len(records) == 0 {
		return CapabilityMessage{}, ErrNoRecords
	}

	capability, err := DecodeCapability(records[0])
	if err != nil {
		return CapabilityMessage{}, err
	}

	msg := CapabilityMessage{Capability: capability}
	for _, rec := range records[1:] {
		switch rec.Kind() {
		case RecordStatus:
			if st, err := DecodeStatus(rec); err == nil {
				msg.Status = &st
			}
		case RecordVendorID:
			if v, ok := DecodeVendorInfo(rec); ok {
				msg.Vendor = &v
			}
		default:
		}
	}
	return msg, nil
}

// ControlMessage is a WLC_CTL record with an optional trailing WLC_STAI
type ControlMessage struct {
	Status  *Status
	Control Control
}

// ParseControlMessage decodes the first record as WLC_CTL and scans the
// rest for WLC_STAI.
func ParseControlMessage(records []Record) (ControlMessage, error) {
	if len(records) == 0 {
		return ControlMessage{}, ErrNoRecords
	}

	ctl, err := DecodeControl(records[0])
	if err != nil {
		return ControlMessage{}, err
	}

	msg := ControlMessage{Control: ctl}
	for _, rec := range records[1:] {
		if !rec.Is(RecordStatus) {
			continue
		}
		if st, err := DecodeStatus(rec); err == nil {
			msg.Status = &st
		}
	}
	return msg, nil
}
