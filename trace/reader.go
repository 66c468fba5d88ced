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

package trace

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Reader streams events from a CBOR trace
type Reader struct {
	closer  io.Closer
	decoder *cbor.Decoder
	session string
}

// NewReader reads every event from r
func NewReader(r io.Reader) *Reader {
	rd := &Reader{decoder: newDecoder(r)}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// OpenFile opens a trace file written by FileLogger
func OpenFile(path string) (*Reader, error) {
	f, err := os.Open(path) //nolint:gosec // operator-chosen path
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	return NewReader(f), nil
}

// OnlySession restricts Next to events of one session
func (r *Reader) OnlySession(id string) *Reader {
	r.session = id
	return r
}

// Next returns the next event, or io.EOF at the end of the stream
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, fmt.Errorf("failed to decode trace event: %w", err)
		}
		if r.session == "" || event.SessionID == r.session {
			return event, nil
		}
	}
}

// ReadAll drains the stream
func (r *Reader) ReadAll() ([]Event, error) {
	var events []Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

// Close closes the underlying reader when it is closable
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
