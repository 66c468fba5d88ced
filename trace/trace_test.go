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
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSession(logger Logger) *Session {
	s := NewSession(logger)
	s.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 30, 45, 123_000_000, time.UTC)
	}
	return s
}

func TestEncodeEvent_IntegerKeys(t *testing.T) {
	t.Parallel()

	data, err := EncodeEvent(Event{Kind: KindSignal, Detail: "lost"})
	require.NoError(t, err)

	// Map header followed by key 1 (timestamp); string keys would start 0x6?
	require.NotEmpty(t, data)
	assert.Equal(t, byte(0xA0), data[0]&0xE0, "top level must be a map")
	assert.Equal(t, byte(0x01), data[1])
}

func TestDecodeEvent_RoundTripsFields(t *testing.T) {
	t.Parallel()

	in := Event{
		Timestamp:  time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC),
		SessionID:  "abc",
		Kind:       KindRecord,
		Direction:  DirectionOut,
		RecordType: "WLCINF",
		Payload:    []byte{100, 0, 0, 0, 0, 0},
	}
	data, err := EncodeEvent(in)
	require.NoError(t, err)

	out, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))
	out.Timestamp = in.Timestamp
	assert.Equal(t, in, out)
}

func TestDecodeEvent_Garbage(t *testing.T) {
	t.Parallel()

	_, err := DecodeEvent([]byte{0xFF, 0x00})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode trace event")
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for k := KindRecord; k <= KindSession; k++ {
		got, ok := ParseKind(k.String())
		require.True(t, ok, k.String())
		assert.Equal(t, k, got)
	}

	got, ok := ParseKind("state")
	assert.True(t, ok)
	assert.Equal(t, KindState, got)

	_, ok = ParseKind("nope")
	assert.False(t, ok)
}

func TestEvent_String(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 1, 8, 9, 10, 11_000_000, time.UTC)
	tests := []struct {
		name  string
		want  string
		event Event
	}{
		{
			name:  "record",
			event: Event{Timestamp: ts, Kind: KindRecord, Direction: DirectionIn, RecordType: "WLCCTL", Payload: []byte{0x01, 0xAB}},
			want:  "08:09:10.011 RECORD IN  WLCCTL   01 AB",
		},
		{
			name:  "state",
			event: Event{Timestamp: ts, Kind: KindState, OldState: "ReadControl", NewState: "CheckWptRequested", Detail: "1ms"},
			want:  "08:09:10.011 STATE ReadControl -> CheckWptRequested 1ms",
		},
		{
			name:  "signal",
			event: Event{Timestamp: ts, Kind: KindSignal, Detail: "full"},
			want:  "08:09:10.011 SIGNAL full",
		},
		{
			name:  "unknown kind",
			event: Event{Timestamp: ts, Kind: Kind(42), Detail: "?"},
			want:  "08:09:10.011 UNKNOWN ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.event.String())
		})
	}
}

func TestDirection_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "IN", DirectionIn.String())
	assert.Equal(t, "OUT", DirectionOut.String())
	assert.Equal(t, "-", DirectionNone.String())
}

func TestSession_StampsEvents(t *testing.T) {
	t.Parallel()

	mem := &MemoryLogger{}
	s := fixedSession(mem)
	_, err := uuid.Parse(s.ID())
	require.NoError(t, err, "session IDs are UUIDs")

	payload := []byte{0x10}
	s.Lifecycle("session started")
	s.Record(DirectionIn, "WLCCAP", payload)
	payload[0] = 0xFF
	s.State("ReadCapability", "StaticTransfer", "0s")
	s.Signal("lost")
	s.Action("start_power_transfer")
	s.Error(errors.New("boom"))
	s.Error(nil)

	events := mem.Events()
	require.Len(t, events, 6)
	for _, ev := range events {
		assert.Equal(t, s.ID(), ev.SessionID)
		assert.Equal(t, 2026, ev.Timestamp.Year())
	}
	assert.Equal(t, []byte{0x10}, events[1].Payload, "payload is copied")
	assert.Equal(t, "StaticTransfer", events[2].NewState)
	assert.Equal(t, "boom", events[5].Detail)

	assert.Len(t, mem.Filter(KindSignal), 1)
	assert.Empty(t, mem.Filter(Kind(99)))
}

func TestNewSession_NilLogger(t *testing.T) {
	t.Parallel()

	s := NewSession(nil)
	assert.NotPanics(t, func() { s.Signal("x") })
	assert.NotEqual(t, s.ID(), NewSession(nil).ID())
}

func TestMemoryLogger_Concurrent(t *testing.T) {
	t.Parallel()

	mem := &MemoryLogger{}
	s := NewSession(mem)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				s.Action("tick")
			}
		}()
	}
	wg.Wait()
	assert.Len(t, mem.Events(), 400)
}

func TestFileLogger_AppendsAndReads(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trace.cbor")

	for i := range 2 {
		logger, err := NewFileLogger(path)
		require.NoError(t, err)
		s := fixedSession(logger)
		s.Lifecycle("session started")
		s.Signal("lost")
		require.NoError(t, logger.Close(), "run %d", i)
	}

	r, err := OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	events, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 4, "second logger appends")
	assert.NotEqual(t, events[0].SessionID, events[2].SessionID)
}

func TestFileLogger_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trace.cbor")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
	logger.Log(Event{Kind: KindSignal})

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestNewFileLogger_BadPath(t *testing.T) {
	t.Parallel()

	_, err := NewFileLogger(filepath.Join(t.TempDir(), "missing", "trace.cbor"))
	require.Error(t, err)
}

func TestReader_OnlySession(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := newEncoder(&buf)
	for _, id := range []string{"a", "b", "a"} {
		require.NoError(t, enc.Encode(Event{SessionID: id, Kind: KindAction, Detail: id}))
	}

	r := NewReader(&buf).OnlySession("a")
	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", first.Detail)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", second.SessionID)

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
	require.NoError(t, r.Close())
}

func TestReader_CorruptStream(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, newEncoder(&buf).Encode(Event{Kind: KindSignal, Detail: "ok"}))
	buf.Write([]byte{0xFF})

	events, err := NewReader(&buf).ReadAll()
	require.Error(t, err)
	assert.Len(t, events, 1)
}

func TestOpenFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := OpenFile(filepath.Join(t.TempDir(), "none.cbor"))
	require.Error(t, err)
}
