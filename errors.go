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
	"errors"
	"fmt"
)

// Error categories used by the codec, the watchdog and the controller
var (
	// Format errors - the record is dropped and treated as no data
	ErrTooShort        = errors.New("record payload too short")
	ErrInvalidModeReq  = errors.New("invalid capability mode request")
	ErrWrongRecordType = errors.New("unexpected record type")
	ErrEmptyMessage    = errors.New("empty NDEF message")
	ErrNoRecords       = errors.New("NDEF message contains no records")

	// NDEF framing errors - raised before the message is decoded
	ErrMessageTooLarge     = errors.New("NDEF message too large")
	ErrIncompleteRecord    = errors.New("incomplete NDEF record")
	ErrInvalidRecordHeader = errors.New("invalid NDEF record header")
	ErrTooManyRecords      = errors.New("too many NDEF records")

	// Transport errors - recovered through the retry and presence paths
	ErrTransportRead  = errors.New("transport read failed")
	ErrTransportWrite = errors.New("transport write failed")
	ErrNoTransport    = errors.New("no transport attached")

	// Internal retry exhaustion, converted to a lost listener
	ErrRetryExhausted = errors.New("retry budget exhausted")

	// Radio errors - the session falls back to capability discovery
	ErrRadioEnable   = errors.New("wireless charging could not be enabled")
	ErrPowerTransfer = errors.New("power transfer request rejected")

	// Session lifecycle
	ErrSessionActive   = errors.New("charging session already active")
	ErrSessionInactive = errors.New("no charging session active")
)

// FormatError reports a malformed, undersized or mistyped WLC record
type FormatError struct {
	Err    error  // Underlying sentinel
	Record string // Record type that was being decoded
	Length int    // Payload length seen
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s (%d bytes): %v", e.Record, e.Length, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func newFormatError(record RecordType, payload []byte, err error) *FormatError {
	return &FormatError{
		Record: record.String(),
		Length: len(payload),
		Err:    err,
	}
}

// TransportError wraps a read or write failure reported by the radio driver
type TransportError struct {
	Err       error  // Underlying error
	Op        string // Operation that failed
	Retryable bool   // Whether the state machine may retry
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RadioError reports that enabling WLC or starting power transfer failed.
// The session survives it and returns to capability discovery.
type RadioError struct {
	Err error
	Op  string
}

func (e *RadioError) Error() string {
	return fmt.Sprintf("radio %s: %v", e.Op, e.Err)
}

func (e *RadioError) Unwrap() error {
	return e.Err
}

// IsFormatError returns true if err came from decoding a WLC record
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case IsFormatError(err),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite):
		return true
	default:
		return false
	}
}

// IsRadioError returns true if err is a radio enable or power-transfer failure
func IsRadioError(err error) bool {
	var re *RadioError
	return errors.As(err, &re)
}
