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

// Package trace records a charging session as a stream of CBOR events:
// every record exchanged with the listener, every state transition and
// every signal raised by the watchdog.
package trace

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies a trace event
type Kind uint8

const (
	KindRecord Kind = iota
	KindState
	KindSignal
	KindAction
	KindError
	KindSession
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "RECORD"
	case KindState:
		return "STATE"
	case KindSignal:
		return "SIGNAL"
	case KindAction:
		return "ACTION"
	case KindError:
		return "ERROR"
	case KindSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// ParseKind maps a kind name, in any case, back to its Kind
func ParseKind(name string) (Kind, bool) {
	for k := KindRecord; k <= KindSession; k++ {
		if strings.EqualFold(k.String(), name) {
			return k, true
		}
	}
	return 0, false
}

// Direction is the flow of a record relative to the poller
type Direction uint8

const (
	DirectionNone Direction = iota
	DirectionIn
	DirectionOut
)

func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "-"
	}
}

// Event is one trace entry. CBOR encoding uses integer keys.
type Event struct {
	Timestamp  time.Time `cbor:"1,keyasint"`
	SessionID  string    `cbor:"2,keyasint"`
	Kind       Kind      `cbor:"3,keyasint"`
	Direction  Direction `cbor:"4,keyasint,omitempty"`
	RecordType string    `cbor:"5,keyasint,omitempty"`
	Payload    []byte    `cbor:"6,keyasint,omitempty"`
	OldState   string    `cbor:"7,keyasint,omitempty"`
	NewState   string    `cbor:"8,keyasint,omitempty"`
	Detail     string    `cbor:"9,keyasint,omitempty"`
}

// String renders the event on one line for wlctrace
func (e Event) String() string {
	ts := e.Timestamp.Format("15:04:05.000")
	switch e.Kind {
	case KindRecord:
		return fmt.Sprintf("%s %s %-3s %-8s % X", ts, e.Kind, e.Direction, e.RecordType, e.Payload)
	case KindState:
		return fmt.Sprintf("%s %s %s -> %s %s", ts, e.Kind, e.OldState, e.NewState, e.Detail)
	default:
		return fmt.Sprintf("%s %s %s", ts, e.Kind, e.Detail)
	}
}
