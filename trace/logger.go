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
	"time"

	"github.com/ZaparooProject/go-wlc/internal/syncutil"
	"github.com/google/uuid"
)

// Logger receives trace events. Implementations must be safe for
// concurrent use and must not block.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards every event
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

var _ Logger = NoopLogger{}

// MemoryLogger keeps events in memory
type MemoryLogger struct {
	events []Event
	mu     syncutil.Mutex
}

// Log appends the event.
func (l *MemoryLogger) Log(event Event) {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
}

// Events returns a copy of everything logged so far
func (l *MemoryLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// Filter returns the logged events of one kind
func (l *MemoryLogger) Filter(kind Kind) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Event
	for _, ev := range l.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

var _ Logger = (*MemoryLogger)(nil)

// Session stamps events with one session ID and the current time
type Session struct {
	logger Logger
	now    func() time.Time
	id     string
}

// NewSession starts a traced session with a fresh UUID. A nil logger
// discards events.
func NewSession(logger Logger) *Session {
	if logger == nil {
		logger = NoopLogger{}
	}
	return &Session{
		logger: logger,
		now:    time.Now,
		id:     uuid.New().String(),
	}
}

// ID returns the session UUID
func (s *Session) ID() string {
	return s.id
}

func (s *Session) emit(ev Event) {
	ev.Timestamp = s.now()
	ev.SessionID = s.id
	s.logger.Log(ev)
}

// Record traces a record read from or written to the listener
func (s *Session) Record(dir Direction, recordType string, payload []byte) {
	s.emit(Event{
		Kind:       KindRecord,
		Direction:  dir,
		RecordType: recordType,
		Payload:    append([]byte(nil), payload...),
	})
}

// State traces a state transition; detail carries the wait
func (s *Session) State(from, to, detail string) {
	s.emit(Event{Kind: KindState, OldState: from, NewState: to, Detail: detail})
}

// Signal traces a watchdog signal
func (s *Session) Signal(name string) {
	s.emit(Event{Kind: KindSignal, Detail: name})
}

// Action traces a side effect performed on the radio
func (s *Session) Action(detail string) {
	s.emit(Event{Kind: KindAction, Detail: detail})
}

// Error traces a recovered error
func (s *Session) Error(err error) {
	if err == nil {
		return
	}
	s.emit(Event{Kind: KindError, Detail: err.Error()})
}

// Lifecycle traces session start and end
func (s *Session) Lifecycle(detail string) {
	s.emit(Event{Kind: KindSession, Detail: detail})
}
